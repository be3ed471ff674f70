package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigest_Deterministic(t *testing.T) {
	a := []ResolvedEntity{{
		Ref:    Ref(KindModel, "G1-M1"),
		Fields: IRObject{"name": IRString("Paragon"), "year": IRInt(1979)},
		Extra:  IRObject{},
	}}
	b := []ResolvedEntity{{
		Ref:    Ref(KindModel, "G1-M1"),
		Fields: IRObject{"year": IRInt(1979), "name": IRString("Paragon")},
		Extra:  IRObject{},
	}}

	da, err := Digest(DomainSnapshot, a)
	require.NoError(t, err)
	db, err := Digest(DomainSnapshot, b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.Len(t, da, 64)
}

func TestDigest_DomainSeparation(t *testing.T) {
	v := map[string]string{"a": "b"}
	d1, err := Digest(DomainSnapshot, v)
	require.NoError(t, err)
	d2, err := Digest(DomainHierarchy, v)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestDigest_SensitiveToValues(t *testing.T) {
	d1, err := Digest(DomainSnapshot, IRObject{"year": IRInt(1978)})
	require.NoError(t, err)
	d2, err := Digest(DomainSnapshot, IRObject{"year": IRInt(1979)})
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	out, err := MarshalCanonical(IRObject{"name": IRString("Rock & Roll <LE>")})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Rock & Roll <LE>"}`, string(out))
}
