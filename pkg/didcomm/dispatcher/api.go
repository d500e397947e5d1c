/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dispatcher

// ProtocolService is a protocol service messages are dispatched to by type.
type ProtocolService interface {
	Accept(msgType string) bool
	Name() string
}
