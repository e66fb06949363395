package apscan

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

var _ ScanListener = &Publisher{}

// Publisher POSTs every finished scan pass to a webhook as JSON.
type Publisher struct {
	client *resty.Client
	url    string
}

type publishPayload struct {
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Networks []AccessPoint `json:"networks"`
	Devices  []DeviceScan  `json:"devices"`
}

func NewPublisher(url string) *Publisher {
	client := resty.New()
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(10 * time.Second)
	client.SetContentLength(true)

	return &Publisher{client: client, url: url}
}

func (t *Publisher) Publish(ctx context.Context, u ScanUpdate) error {
	resp, err := t.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(publishPayload{
			Started:  u.Started,
			Finished: u.Finished,
			Networks: u.AccessPoints(),
			Devices:  u.Devices,
		}).
		Post(t.url)
	if err != nil {
		return fmt.Errorf("posting scan to %s: %w", t.url, err)
	}
	if resp.IsError() {
		return fmt.Errorf("posting scan to %s: %s", t.url, resp.Status())
	}
	return nil
}
