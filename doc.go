/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package aries is a DIDComm connection engine: it establishes pairwise connections between agents
// over the DID-Exchange and legacy Connections handshakes, answers trust pings and rotates connection DIDs.
//
// Packages for end developer usage
//
// pkg/framework/context: Wires the stores, KMS, VDR and protocol services of one agent into a Provider.
//
// pkg/client/connection: Creates and receives invitations, connects, accepts requests, rotates DIDs,
// pings and hangs up connections.
//
// pkg/controller: The same operations as commands and REST handlers, with event notifications
// over websocket and webhooks.
//
// cmd/aries-connections-rest: An agent serving the REST controller.
//
// Basic workflow
//
//  1. Create a context using context.New and the provider options.
//  2. Create a client instance using connection.New, passing the context.
//  3. Subscribe to the context's event bus for connection state changes.
//  4. Use the funcs provided by the client to create your solution.
package aries
