/*
 Copyright SecureKey Technologies Inc. All Rights Reserved.

 SPDX-License-Identifier: Apache-2.0
*/

package localkms

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/spi/storage"

	"github.com/hyperledger/aries-connections-go/pkg/internal/storeutil"
	"github.com/hyperledger/aries-connections-go/pkg/kms"
)

// Namespace is the store name used by the local KMS.
const Namespace = "kmsdb"

var logger = log.New("aries-framework/kms/localkms")

// package localkms is a storage backed kms.KeyManager that also implements crypto.Crypto for the Ed25519 keys
// it holds. Private keys are stored as they are: protecting them at rest is the job of the storage provider.

// KeyHandle is the handle of a key held by LocalKMS.
type KeyHandle struct {
	KeyID string
	priv  ed25519.PrivateKey
}

type storedKey struct {
	Type kms.KeyType `json:"type"`
	Seed []byte  `json:"seed"`
}

// LocalKMS implements kms.KeyManager and crypto.Crypto using a local store.
type LocalKMS struct {
	store storage.Store
}

// New will create a new (local) KMS service.
func New(p storage.Provider) (*LocalKMS, error) {
	store, err := p.OpenStore(Namespace)
	if err != nil {
		return nil, fmt.Errorf("new: failed to open kms store: %w", err)
	}

	return &LocalKMS{store: store}, nil
}

// Create a new key of type kt. Only kms.ED25519Type is supported.
func (l *LocalKMS) Create(kt kms.KeyType) (string, interface{}, error) {
	if kt != kms.ED25519Type {
		return "", nil, fmt.Errorf("create: key type %s not supported", kt)
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("create: generate key: %w", err)
	}

	kid, err := CreateKID(pub)
	if err != nil {
		return "", nil, fmt.Errorf("create: %w", err)
	}

	err = storeutil.MarshalAndSave(l.store, kid, &storedKey{Type: kt, Seed: priv.Seed()})
	if err != nil {
		return "", nil, fmt.Errorf("create: store key: %w", err)
	}

	logger.Debugf("created %s key %s", kt, kid)

	return kid, &KeyHandle{KeyID: kid, priv: priv}, nil
}

// Get key handle for the given keyID.
func (l *LocalKMS) Get(keyID string) (interface{}, error) {
	return l.handle(keyID)
}

// ExportPubKeyBytes returns the raw public key of keyID.
func (l *LocalKMS) ExportPubKeyBytes(keyID string) ([]byte, kms.KeyType, error) {
	kh, err := l.handle(keyID)
	if err != nil {
		return nil, "", err
	}

	return kh.priv.Public().(ed25519.PublicKey), kms.ED25519Type, nil
}

// CreateAndExportPubKeyBytes creates a key of type kt and returns its id and raw public key.
func (l *LocalKMS) CreateAndExportPubKeyBytes(kt kms.KeyType) (string, []byte, error) {
	kid, kh, err := l.Create(kt)
	if err != nil {
		return "", nil, err
	}

	return kid, kh.(*KeyHandle).priv.Public().(ed25519.PublicKey), nil
}

// Sign msg with the key referenced by kh, a *KeyHandle or a key id.
func (l *LocalKMS) Sign(msg []byte, kh interface{}) ([]byte, error) {
	var handle *KeyHandle

	switch k := kh.(type) {
	case *KeyHandle:
		handle = k
	case string:
		h, err := l.handle(k)
		if err != nil {
			return nil, err
		}

		handle = h
	default:
		return nil, fmt.Errorf("sign: unsupported key handle %T", kh)
	}

	return ed25519.Sign(handle.priv, msg), nil
}

// Verify signature over msg with kh, a raw Ed25519 public key.
func (l *LocalKMS) Verify(signature, msg []byte, kh interface{}) error {
	var pub ed25519.PublicKey

	switch k := kh.(type) {
	case ed25519.PublicKey:
		pub = k
	case []byte:
		pub = k
	default:
		return fmt.Errorf("verify: unsupported public key %T", kh)
	}

	if len(pub) != ed25519.PublicKeySize {
		return errors.New("verify: invalid public key size")
	}

	if !ed25519.Verify(pub, msg, signature) {
		return errors.New("verify: invalid signature")
	}

	return nil
}

func (l *LocalKMS) handle(keyID string) (*KeyHandle, error) {
	var sk storedKey

	err := storeutil.GetAndUnmarshal(l.store, keyID, &sk)
	if err != nil {
		if errors.Is(err, storage.ErrDataNotFound) {
			return nil, fmt.Errorf("get key %s: %w", keyID, kms.ErrKeyNotFound)
		}

		return nil, fmt.Errorf("get key %s: %w", keyID, err)
	}

	if len(sk.Seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("get key %s: invalid seed", keyID)
	}

	return &KeyHandle{KeyID: keyID, priv: ed25519.NewKeyFromSeed(sk.Seed)}, nil
}

// CreateKID returns the base64url JWK thumbprint of an Ed25519 public key.
func CreateKID(pub ed25519.PublicKey) (string, error) {
	tp, err := (&jose.JSONWebKey{Key: pub}).Thumbprint(crypto.SHA256)
	if err != nil {
		return "", fmt.Errorf("createKID: thumbprint: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(tp), nil
}
