package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	data, err := json.Marshal(map[string]string{"type": TypeHello, "public_key": "PEM"})
	require.NoError(t, err)

	env := NewEnvelope(data, 1, "sig")
	assert.Equal(t, TypeSignedData, env.Type)
	assert.NotEmpty(t, env.ID)
	assert.Equal(t, "1", env.Counter)
	assert.Equal(t, "sig", env.Signature)
}

func TestEnvelopeInnerType(t *testing.T) {
	data, _ := json.Marshal(map[string]string{"type": TypePublicChat})
	env := NewEnvelope(data, 1, "sig")

	it, err := env.InnerType()
	require.NoError(t, err)
	assert.Equal(t, TypePublicChat, it)
}

func TestEnvelopeInnerTypeMissing(t *testing.T) {
	env := NewEnvelope([]byte(`{}`), 1, "sig")
	_, err := env.InnerType()
	assert.Error(t, err)
}

func TestNewHelloRejectsEmptyKey(t *testing.T) {
	_, err := NewHello("")
	assert.Error(t, err)
}

func TestNewHello(t *testing.T) {
	h, err := NewHello("PEM-DATA")
	require.NoError(t, err)
	assert.Equal(t, TypeHello, h.Type)
	assert.Equal(t, "PEM-DATA", h.PublicKey)
}

func TestNewServerHelloRejectsEmptySender(t *testing.T) {
	_, err := NewServerHello("")
	assert.Error(t, err)
}

func TestNewPublicChat(t *testing.T) {
	pc, err := NewPublicChat("fp1", "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", pc.Message)
}

func TestNewChatValidation(t *testing.T) {
	_, err := NewChat(nil, "", nil, "")
	assert.Error(t, err)

	_, err = NewChat(nil, "iv", nil, "")
	assert.Error(t, err)

	_, err = NewChat(nil, "iv", []string{"k1"}, "")
	assert.Error(t, err)

	c, err := NewChat([]string{"S1:4678"}, "iv", []string{"k1"}, "ct")
	require.NoError(t, err)
	assert.Equal(t, TypeChat, c.Type)
}

func TestChatSegmentSenderRecipients(t *testing.T) {
	seg, err := NewChatSegment([]string{"fpA", "fpB", "fpC"}, "secret")
	require.NoError(t, err)
	assert.Equal(t, "fpA", seg.Sender())
	assert.Equal(t, []string{"fpB", "fpC"}, seg.Recipients())
}

func TestChatSegmentNoRecipients(t *testing.T) {
	seg, err := NewChatSegment([]string{"fpA"}, "secret")
	require.NoError(t, err)
	assert.Nil(t, seg.Recipients())
}

func TestNewChatSegmentRejectsEmpty(t *testing.T) {
	_, err := NewChatSegment(nil, "x")
	assert.Error(t, err)
}

func TestClientListRoundTrip(t *testing.T) {
	cl := NewClientList([]ServerClients{
		{Address: "S1:4678", Clients: []string{"pkA"}},
	})
	data, err := json.Marshal(cl)
	require.NoError(t, err)

	var decoded ClientList
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, TypeClientList, decoded.Type)
	assert.Len(t, decoded.Servers, 1)
}

func TestPeekType(t *testing.T) {
	raw := []byte(`{"type":"client_list_request"}`)
	typ, err := PeekType(raw)
	require.NoError(t, err)
	assert.Equal(t, TypeClientListRequest, typ)
}

func TestPeekTypeMissing(t *testing.T) {
	_, err := PeekType([]byte(`{}`))
	assert.Error(t, err)
}
