/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package http

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
)

type mockProvider struct {
	received []*transport.Envelope
	err      error
}

func (p *mockProvider) InboundMessageHandler() transport.InboundMessageHandler {
	return func(envelope *transport.Envelope) error {
		p.received = append(p.received, envelope)

		return p.err
	}
}

func TestInboundHandler(t *testing.T) {
	_, err := NewInboundHandler(nil)
	require.Error(t, err)

	prov := &mockProvider{}

	inHandler, err := NewInboundHandler(prov)
	require.NoError(t, err)

	server := httptest.NewServer(inHandler)
	defer server.Close()

	client := server.Client()

	post := func(contentType, body string) int {
		rs, e := client.Post(server.URL, contentType, bytes.NewBufferString(body))
		require.NoError(t, e)
		require.NoError(t, rs.Body.Close())

		return rs.StatusCode
	}

	rs, err := client.Get(server.URL)
	require.NoError(t, err)
	require.NoError(t, rs.Body.Close())
	require.Equal(t, http.StatusMethodNotAllowed, rs.StatusCode)

	require.Equal(t, http.StatusUnsupportedMediaType, post("bad-content-type", "{}"))
	require.Equal(t, http.StatusBadRequest, post(transport.MediaTypeEnvelope, ""))
	require.Equal(t, http.StatusBadRequest, post(transport.MediaTypeEnvelope, "not json"))
	require.Equal(t, http.StatusBadRequest, post(transport.MediaTypeEnvelope, `{"toKey":"abc"}`))

	envelope := `{"message":{"@type":"https://didcomm.org/trust_ping/1.0/ping"},"fromKey":"from","toKey":"to"}`
	require.Equal(t, http.StatusAccepted, post(transport.MediaTypeEnvelope, envelope))
	require.Len(t, prov.received, 1)
	require.Equal(t, "from", prov.received[0].FromKey)
	require.Equal(t, "to", prov.received[0].ToKey)

	prov.err = errors.New("handler failed")
	require.Equal(t, http.StatusInternalServerError, post(transport.MediaTypeEnvelope, envelope))
}
