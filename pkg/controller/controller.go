/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package controller

import (
	"github.com/hyperledger/aries-connections-go/pkg/controller/command"
	connectioncmd "github.com/hyperledger/aries-connections-go/pkg/controller/command/connection"
	"github.com/hyperledger/aries-connections-go/pkg/controller/rest"
	connectionrest "github.com/hyperledger/aries-connections-go/pkg/controller/rest/connection"
	"github.com/hyperledger/aries-connections-go/pkg/controller/webnotifier"
	"github.com/hyperledger/aries-connections-go/pkg/framework/context"
)

type allOpts struct {
	webhookURLs []string
	notifier    command.Notifier
}

const wsPath = "/ws"

// Opt represents a controller option.
type Opt func(opts *allOpts)

// WithWebhookURLs is an option for setting up a webhook dispatcher which will notify clients of events.
func WithWebhookURLs(webhookURLs ...string) Opt {
	return func(opts *allOpts) {
		opts.webhookURLs = webhookURLs
	}
}

// WithNotifier is an option for setting up a notifier which will notify clients of events.
func WithNotifier(notifier command.Notifier) Opt {
	return func(opts *allOpts) {
		opts.notifier = notifier
	}
}

// GetRESTHandlers returns all REST handlers provided by controller. Events of the agent are notified
// to webhooks and websocket clients at /ws, unless another notifier is given.
func GetRESTHandlers(ctx *context.Provider, opts ...Opt) []rest.Handler {
	restAPIOpts := &allOpts{}
	// Apply options
	for _, opt := range opts {
		opt(restAPIOpts)
	}

	notifier := observe(ctx, restAPIOpts)

	var allHandlers []rest.Handler
	allHandlers = append(allHandlers, connectionrest.New(ctx).GetRESTHandlers()...)

	nhp, ok := notifier.(handlerProvider)
	if ok {
		allHandlers = append(allHandlers, nhp.GetRESTHandlers()...)
	}

	return allHandlers
}

type handlerProvider interface {
	GetRESTHandlers() []rest.Handler
}

// GetCommandHandlers returns all command handlers provided by controller.
func GetCommandHandlers(ctx *context.Provider, opts ...Opt) []command.Handler {
	cmdOpts := &allOpts{}
	// Apply options
	for _, opt := range opts {
		opt(cmdOpts)
	}

	observe(ctx, cmdOpts)

	return connectioncmd.New(ctx).GetHandlers()
}

// observe forwards the events of the agent to the notifier until the event bus is shut down.
func observe(ctx *context.Provider, opts *allOpts) command.Notifier {
	notifier := opts.notifier
	if notifier == nil {
		notifier = webnotifier.New(wsPath, opts.webhookURLs)
	}

	webnotifier.NewObserver(notifier).Observe(ctx.EventBus().Subscribe(ctx.ContextID()))

	return notifier
}
