/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package webnotifier

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPNotifier posts notifications to webhook subscribers.
type HTTPNotifier struct {
	urls   []string
	client *http.Client
}

// NewHTTPNotifier returns a new instance of an HTTPNotifier.
func NewHTTPNotifier(webhookURLs []string) *HTTPNotifier {
	return &HTTPNotifier{urls: webhookURLs, client: &http.Client{}}
}

// Notify posts the topic message to every webhook url. Errors of all subscribers are joined.
func (n *HTTPNotifier) Notify(topic string, message []byte) error {
	if topic == "" {
		return fmt.Errorf(emptyTopicErrMsg)
	}

	if len(message) == 0 {
		return fmt.Errorf(emptyMessageErrMsg)
	}

	topicMsg, err := PrepareTopicMessage(topic, message)
	if err != nil {
		return fmt.Errorf(failedToCreateErrMsg, err)
	}

	var allErrs error

	for _, webhookURL := range n.urls {
		allErrs = appendError(allErrs, n.post(webhookURL, topicMsg))
	}

	return allErrs
}

func (n *HTTPNotifier) post(destination string, message []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), notificationSendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(message))
	if err != nil {
		return fmt.Errorf("failed to create new http post request for %s: %w", destination, err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to post notification to %s: %w", destination, err)
	}

	defer closeResponse(resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("notification was sent to %s, but %s was received", destination, resp.Status)
	}

	logger.Debugf("notification sent to %s", destination)

	return nil
}

func closeResponse(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warnf("failed to close response body: %v", err)
	}
}
