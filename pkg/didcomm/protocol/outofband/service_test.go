/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package outofband

import (
	"errors"
	"testing"

	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	mockstorage "github.com/hyperledger/aries-framework-go/component/storageutil/mock/storage"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/aries-connections-go/pkg/didcomm/event"
	"github.com/hyperledger/aries-connections-go/pkg/doc/did"
)

const fp = "z6MkpTHR8VNsBxYAAWHut2Geadd9jSwuBV8xRoAnwWsdvktH"

type provider struct {
	storage storage.Provider
	bus     *event.Bus
}

func (p *provider) StorageProvider() storage.Provider { return p.storage }
func (p *provider) EventBus() *event.Bus               { return p.bus }
func (p *provider) ContextID() string                  { return "tenant" }

func newService(t *testing.T) (*Service, *event.Bus) {
	t.Helper()

	bus := event.NewBus()

	s, err := New(&provider{storage: mem.NewProvider(), bus: bus})
	require.NoError(t, err)

	return s, bus
}

func TestNew(t *testing.T) {
	p := mockstorage.NewMockStoreProvider()
	p.ErrOpenStoreHandle = errors.New("open error")

	_, err := New(&provider{storage: p, bus: event.NewBus()})
	require.ErrorContains(t, err, "open error")
}

func TestSaveAndFind(t *testing.T) {
	s, _ := newService(t)

	rec := &Record{
		Role:                        RoleSender,
		State:                       StateAwaitResponse,
		InvitationID:                "inv-1",
		RecipientKeyFingerprints:    []string{fp},
		InlineServiceKeys:           []InlineServiceKey{{RecipientKeyFingerprint: fp, KeyHandle: "kh"}},
		InvitationRequestsThreadIDs: []string{"req-thid"},
		InvitationDIDs:              []string{"did:web:example.com"},
		Services: []did.DIDCommService{{
			ServiceEndpoint: "https://example.com",
			RecipientKeys:   []string{fp},
		}},
	}
	require.NoError(t, s.Save(rec))
	require.NotEmpty(t, rec.ID)

	got, err := s.GetByID(rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec.Services, got.Services)

	kh, ok := got.KeyHandle(fp)
	require.True(t, ok)
	require.Equal(t, "kh", kh)
	require.Equal(t, "https://example.com", got.ResolvedService().ServiceEndpoint)

	found, err := s.FindByInvitationID("inv-1", RoleSender)
	require.NoError(t, err)
	require.Equal(t, rec.ID, found.ID)

	found, err = s.FindByInvitationID("inv-1", RoleReceiver)
	require.NoError(t, err)
	require.Nil(t, found)

	found, err = s.FindByRecipientKey(fp)
	require.NoError(t, err)
	require.Equal(t, rec.ID, found.ID)

	found, err = s.FindByInvitationDID("did:web:example.com")
	require.NoError(t, err)
	require.Equal(t, rec.ID, found.ID)

	found, err = s.FindByRequestThreadID("req-thid", "inv-1", RoleSender)
	require.NoError(t, err)
	require.Equal(t, rec.ID, found.ID)

	found, err = s.FindByRequestThreadID("req-thid", "inv-2", "")
	require.NoError(t, err)
	require.Nil(t, found)

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)

	require.NoError(t, s.DeleteByID(rec.ID))

	found, err = s.FindByID(rec.ID)
	require.NoError(t, err)
	require.Nil(t, found)

	require.ErrorContains(t, s.Save(&Record{Role: RoleSender}), "invitation id is mandatory")
}

func TestUpdateState(t *testing.T) {
	s, bus := newService(t)

	sub := bus.Subscribe("tenant", event.OutOfBandStateChanged)
	defer sub.Unsubscribe()

	rec := &Record{Role: RoleSender, State: StateAwaitResponse, InvitationID: "inv-1"}
	require.NoError(t, s.Save(rec))

	require.NoError(t, s.UpdateState(rec, StateDone))

	e := <-sub.C
	payload, ok := e.Payload.(*StateChanged)
	require.True(t, ok)
	require.Equal(t, StateAwaitResponse, payload.PreviousState)
	require.Equal(t, StateDone, payload.Record.State)

	got, err := s.GetByID(rec.ID)
	require.NoError(t, err)
	require.Equal(t, StateDone, got.State)

	missing := &Record{ID: "missing", State: StateAwaitResponse}
	require.ErrorIs(t, s.UpdateState(missing, StateDone), ErrNotFound)
	require.Equal(t, StateAwaitResponse, missing.State)
}
