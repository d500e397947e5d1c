/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
)

const clientTimeout = time.Second

func TestWithOutboundOpts(t *testing.T) {
	clOpts := &outboundCommHTTPOpts{}
	WithOutboundHTTPClient(&http.Client{})(clOpts)
	require.NotNil(t, clOpts.client)

	WithOutboundTimeout(clientTimeout)(clOpts)
	require.Equal(t, clientTimeout, clOpts.client.Timeout)

	clOpts = &outboundCommHTTPOpts{}
	// opt.client is nil, so setting timeout should panic
	require.Panics(t, func() { WithOutboundTimeout(clientTimeout)(clOpts) })

	WithOutboundTLSConfig(nil)(clOpts)
	require.NotNil(t, clOpts.client)
}

func TestOutboundHTTPTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil || string(body) == "bad" {
			w.WriteHeader(http.StatusBadRequest)

			return
		}

		require.Equal(t, transport.MediaTypeEnvelope, r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	_, err := NewOutbound()
	require.EqualError(t, err, "creation of outbound transport requires an HTTP client")

	ot, err := NewOutbound(WithOutboundHTTPClient(server.Client()), WithOutboundTimeout(clientTimeout))
	require.NoError(t, err)

	require.Error(t, ot.Send([]byte("Hello World"), &transport.Destination{ServiceEndpoint: "serverURL"}))

	err = ot.Send([]byte("bad"), &transport.Destination{ServiceEndpoint: server.URL})
	require.Error(t, err)
	require.Contains(t, err.Error(), "received unsuccessful POST HTTP status from agent")

	require.NoError(t, ot.Send([]byte("Hello World"), &transport.Destination{ServiceEndpoint: server.URL}))

	require.True(t, ot.Accept("http://example.com"))
	require.True(t, ot.Accept("https://example.com"))
	require.False(t, ot.Accept("ws://example.com"))
}
