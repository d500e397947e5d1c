/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package transport

const (
	// MediaTypeEnvelope is the media type of an envelope carried by the transports.
	MediaTypeEnvelope = "application/didcomm-envelope+json"
	// MediaTypeV1PlaintextPayload is the media type for DIDComm V1 payloads as per Aries RFC 0044.
	MediaTypeV1PlaintextPayload = "application/json;flavor=didcomm-msg"
)
