package xkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerive_Deterministic(t *testing.T) {
	k1, err := Derive("ns", "key")
	require.NoError(t, err)
	k2, err := Derive("ns", "key")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, KeyLen)
}

func TestDerive_DistinctInputs(t *testing.T) {
	keys := map[string]string{}
	inputs := [][2]string{
		{"ns", "key"},
		{"ns", "key2"},
		{"ns2", "key"},
		{"default", "key"},
		// 分隔符防护：namespace/key 边界移动不应产生相同键
		{"a:b", "c"},
		{"a", "b:c"},
	}
	for _, in := range inputs {
		k, err := Derive(in[0], in[1])
		require.NoError(t, err)
		prev, dup := keys[k]
		assert.False(t, dup, "collision between %v and %s", in, prev)
		keys[k] = in[0] + "/" + in[1]
	}
}

func TestDerive_EmptyInputs(t *testing.T) {
	_, err := Derive("", "key")
	assert.ErrorIs(t, err, ErrEmptyNamespace)

	_, err = Derive("ns", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestDerive_HexOutput(t *testing.T) {
	k, err := Derive("ns", "key")
	require.NoError(t, err)
	for _, c := range k {
		assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'), "non-hex char %q", c)
	}
}

func TestCodec_MatchesPureDerive(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	pure, err := Derive("ns", "key")
	require.NoError(t, err)

	// 第一次：计算并记忆化
	got, err := codec.Derive("ns", "key")
	require.NoError(t, err)
	assert.Equal(t, pure, got)

	// 第二次：命中记忆化，结果一致
	got, err = codec.Derive("ns", "key")
	require.NoError(t, err)
	assert.Equal(t, pure, got)
	assert.Equal(t, 1, codec.MemoLen())
}

func TestCodec_EmptyInputs(t *testing.T) {
	codec, err := NewCodec()
	require.NoError(t, err)

	_, err = codec.Derive("", "key")
	assert.ErrorIs(t, err, ErrEmptyNamespace)

	_, err = codec.Derive("ns", "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestCodec_MemoEviction(t *testing.T) {
	codec, err := NewCodec(WithMemoSize(2))
	require.NoError(t, err)

	_, _ = codec.Derive("ns", "a")
	_, _ = codec.Derive("ns", "b")
	_, _ = codec.Derive("ns", "c")

	assert.Equal(t, 2, codec.MemoLen())
}

func BenchmarkDerive(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_, _ = Derive("default", "some-logical-key")
	}
}

func BenchmarkCodecDerive(b *testing.B) {
	codec, err := NewCodec()
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for b.Loop() {
		_, _ = codec.Derive("default", "some-logical-key")
	}
}
