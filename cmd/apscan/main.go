package main

import "github.com/dogeorg/apscan/cmd/apscan/cmd"

func main() {
	cmd.Execute()
}
