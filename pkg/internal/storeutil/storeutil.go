/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package storeutil

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"
)

var logger = log.New("aries-framework/store/util")

// HashTag returns a tag value safe for the storage tag grammar (no ':'), used for DIDs and other values
// that may contain the separator.
func HashTag(value string) string {
	sum := sha256.Sum256([]byte(value))

	return hex.EncodeToString(sum[:])
}

// MarshalAndSave stores v as JSON under k.
func MarshalAndSave(store storage.Store, k string, v interface{}, tags ...storage.Tag) error {
	bytes, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", k, err)
	}

	return store.Put(k, bytes, tags...)
}

// GetAndUnmarshal reads k and decodes it into target.
func GetAndUnmarshal(store storage.Store, k string, target interface{}) error {
	bytes, err := store.Get(k)
	if err != nil {
		return err
	}

	return json.Unmarshal(bytes, target)
}

// QueryValues returns the values of every entry matching the query expression.
func QueryValues(store storage.Store, expression string) ([][]byte, error) {
	itr, err := store.Query(expression)
	if err != nil {
		return nil, fmt.Errorf("failed to query store: %w", err)
	}

	defer func() {
		errClose := itr.Close()
		if errClose != nil {
			logger.Errorf("failed to close iterator: %s", errClose.Error())
		}
	}()

	var values [][]byte

	more, err := itr.Next()
	if err != nil {
		return nil, fmt.Errorf("failed to get next set of data from iterator: %w", err)
	}

	for more {
		value, err := itr.Value()
		if err != nil {
			return nil, fmt.Errorf("failed to get value from iterator: %w", err)
		}

		values = append(values, value)

		more, err = itr.Next()
		if err != nil {
			return nil, fmt.Errorf("failed to get next set of data from iterator: %w", err)
		}
	}

	return values, nil
}

// Expression builds a "name:value" query expression.
func Expression(name, value string) string {
	return name + ":" + value
}
