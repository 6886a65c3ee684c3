package playlist

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuantityUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Quantity
		wantErr bool
	}{
		{name: "integer", in: `3`, want: Exact(3)},
		{name: "json null is unset", in: `null`, want: Quantity{}},
		{name: "all literal", in: `"all"`, want: AllQuantity()},
		{name: "all uppercase", in: `"ALL"`, want: AllQuantity()},
		{name: "numeric string", in: `"7"`, want: Exact(7)},
		{name: "zero", in: `0`, wantErr: true},
		{name: "negative", in: `-2`, wantErr: true},
		{name: "garbage", in: `"some"`, wantErr: true},
		{name: "null sentinel string", in: `"null"`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var q Quantity
			err := json.Unmarshal([]byte(tt.in), &q)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, q)
		})
	}
}

func TestRequirementRoundTripsWithUnsetQuantity(t *testing.T) {
	req := Requirement{
		Type:            RequirementByContract,
		Chain:           "ethereum",
		ContractAddress: "0xabc",
		TokenIDs:        []string{"1", "2"},
	}
	b, err := json.Marshal(req)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"quantity":null`)

	var back Requirement
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Quantity.IsZero())
	assert.Equal(t, req, back)
}

func TestQuantityLimit(t *testing.T) {
	assert.Equal(t, 100, AllQuantity().Limit(100))
	assert.Equal(t, 3, Exact(3).Limit(100))
	assert.Equal(t, 10, Exact(50).Limit(10))
}

func TestRequirementValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Requirement
		wantErr bool
	}{
		{
			name: "valid by contract with token ids",
			req: Requirement{
				Type:            RequirementByContract,
				Chain:           "tezos",
				ContractAddress: "KT1abc",
				TokenIDs:        []string{"1", "2"},
			},
		},
		{
			name: "by contract without tokens or quantity",
			req: Requirement{
				Type:            RequirementByContract,
				Chain:           "tezos",
				ContractAddress: "KT1abc",
			},
			wantErr: true,
		},
		{
			name:    "by contract missing chain",
			req:     Requirement{Type: RequirementByContract, ContractAddress: "KT1abc", Quantity: Exact(3)},
			wantErr: true,
		},
		{
			name: "valid by owner",
			req:  Requirement{Type: RequirementByOwner, OwnerAddress: "alice.eth"},
		},
		{
			name:    "by owner missing address",
			req:     Requirement{Type: RequirementByOwner},
			wantErr: true,
		},
		{
			name: "valid by feed name",
			req:  Requirement{Type: RequirementByFeedName, PlaylistName: "Social Codes"},
		},
		{
			name:    "missing type",
			req:     Requirement{OwnerAddress: "alice.eth"},
			wantErr: true,
		},
		{
			name:    "unknown type",
			req:     Requirement{Type: "frobnicate"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequirementApplyDefaults(t *testing.T) {
	feed := Requirement{Type: RequirementByFeedName, PlaylistName: "x"}
	feed.ApplyDefaults()
	assert.Equal(t, Exact(5), feed.Quantity)

	owner := Requirement{Type: RequirementByOwner, OwnerAddress: "alice.eth"}
	owner.ApplyDefaults()
	assert.True(t, owner.Quantity.All)

	explicit := Requirement{Type: RequirementByFeedName, PlaylistName: "x", Quantity: Exact(2)}
	explicit.ApplyDefaults()
	assert.Equal(t, Exact(2), explicit.Quantity)
}

func TestIsDomainName(t *testing.T) {
	assert.True(t, Requirement{Type: RequirementByOwner, OwnerAddress: "alice.eth"}.IsDomainName())
	assert.False(t, Requirement{Type: RequirementByOwner, OwnerAddress: "0xdeadbeef"}.IsDomainName())
	assert.False(t, Requirement{Type: RequirementByOwner, OwnerAddress: "tz1abc"}.IsDomainName())
	assert.False(t, Requirement{Type: RequirementByFeedName, PlaylistName: "alice.eth"}.IsDomainName())
}

func TestCanonicalKeyStable(t *testing.T) {
	a := Requirement{Type: RequirementByOwner, OwnerAddress: "alice.eth", Quantity: Exact(3)}
	b := Requirement{Type: RequirementByOwner, OwnerAddress: "alice.eth", Quantity: Exact(3)}
	assert.Equal(t, a.CanonicalKey(30), b.CanonicalKey(30))
	assert.NotEqual(t, a.CanonicalKey(30), a.CanonicalKey(60))
	c := Requirement{Type: RequirementByOwner, OwnerAddress: "bob.eth", Quantity: Exact(3)}
	assert.NotEqual(t, a.CanonicalKey(30), c.CanonicalKey(30))
}
