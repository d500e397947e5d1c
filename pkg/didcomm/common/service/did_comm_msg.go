/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package service

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/mitchellh/mapstructure"
)

const (
	jsonID             = "@id"
	jsonType           = "@type"
	jsonThread         = "~thread"
	jsonThreadID       = "thid"
	jsonParentThreadID = "pthid"
	jsonMetadata       = "_internal_metadata"
)

// ErrThreadIDNotFound is returned when a message has neither a thread id nor an id.
var ErrThreadIDNotFound = errors.New("threadID not found")

// DIDCommMsgMap did comm msg.
type DIDCommMsgMap map[string]interface{}

// ParseDIDCommMsgMap returns DIDCommMsg with Header.
func ParseDIDCommMsgMap(payload []byte) (DIDCommMsgMap, error) {
	var msg DIDCommMsgMap

	err := json.Unmarshal(payload, &msg)
	if err != nil {
		return nil, fmt.Errorf("invalid payload data format: %w", err)
	}

	return msg, nil
}

// NewDIDCommMsgMap converts structure(model) to DIDCommMsgMap.
func NewDIDCommMsgMap(v interface{}) (DIDCommMsgMap, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	return ParseDIDCommMsgMap(raw)
}

// ID returns string value of the message @id.
func (m DIDCommMsgMap) ID() string {
	if m == nil {
		return ""
	}

	res, _ := m[jsonID].(string) //nolint:errcheck

	return res
}

// Type returns the message @type.
func (m DIDCommMsgMap) Type() string {
	if m == nil {
		return ""
	}

	res, _ := m[jsonType].(string) //nolint:errcheck

	return res
}

// ThreadID returns the message thread id, falling back to the message id.
func (m DIDCommMsgMap) ThreadID() (string, error) {
	if m == nil {
		return "", ErrThreadIDNotFound
	}

	if thid := m.threadField(jsonThreadID); thid != "" {
		return thid, nil
	}

	if id := m.ID(); id != "" {
		return id, nil
	}

	return "", ErrThreadIDNotFound
}

// ParentThreadID returns the message parent thread id.
func (m DIDCommMsgMap) ParentThreadID() string {
	if m == nil {
		return ""
	}

	return m.threadField(jsonParentThreadID)
}

// Metadata returns the internal metadata of the message.
func (m DIDCommMsgMap) Metadata() map[string]interface{} {
	if m[jsonMetadata] == nil {
		return map[string]interface{}{}
	}

	metadata, ok := m[jsonMetadata].(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}

	return metadata
}

// SetThread sets the thread and parent thread ids; empty values are omitted.
func (m DIDCommMsgMap) SetThread(thid, pthid string) {
	thread := map[string]interface{}{}

	if thid != "" {
		thread[jsonThreadID] = thid
	}

	if pthid != "" {
		thread[jsonParentThreadID] = pthid
	}

	if len(thread) == 0 {
		delete(m, jsonThread)

		return
	}

	m[jsonThread] = thread
}

// Clone copies the first level of the message map.
func (m DIDCommMsgMap) Clone() DIDCommMsgMap {
	if m == nil {
		return nil
	}

	msg := DIDCommMsgMap{}
	for k, v := range m {
		msg[k] = v
	}

	return msg
}

// Decode converts the message map to the given structure.
func (m DIDCommMsgMap) Decode(v interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       decodeHook,
		WeaklyTypedInput: true,
		Result:           v,
		TagName:          "json",
	})
	if err != nil {
		return err
	}

	return decoder.Decode(m)
}

func (m DIDCommMsgMap) threadField(name string) string {
	thread, ok := m[jsonThread].(map[string]interface{})
	if !ok {
		return ""
	}

	res, _ := thread[name].(string) //nolint:errcheck

	return res
}

var unmarshalerType = reflect.TypeOf((*json.Unmarshaler)(nil)).Elem()

// decodeHook restores values that only survive the map form as JSON: timestamps, base64 bytes and types with
// their own JSON decoding.
func decodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() == reflect.String {
		switch {
		case to == reflect.TypeOf(time.Time{}):
			return time.Parse(time.RFC3339, data.(string)) //nolint:forcetypeassert
		case to.Kind() == reflect.Slice && to.Elem().Kind() == reflect.Uint8:
			return base64.StdEncoding.DecodeString(data.(string)) //nolint:forcetypeassert
		}
	}

	if from.Kind() != reflect.Map && from.Kind() != reflect.Slice {
		return data, nil
	}

	target, isPtr := to, false
	if to.Kind() == reflect.Ptr {
		target, isPtr = to.Elem(), true
	}

	if target.Kind() != reflect.Struct || !reflect.PtrTo(target).Implements(unmarshalerType) {
		return data, nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	out := reflect.New(target)

	if err := out.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil { //nolint:forcetypeassert
		return nil, err
	}

	if isPtr {
		return out.Interface(), nil
	}

	return out.Elem().Interface(), nil
}
