package qoerr

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassOf(t *testing.T) {
	require.Equal(t, KindResource, ClassOf(ErrAlloc.New("arena")))
	require.Equal(t, KindResource, ClassOf(ErrCatalog.New("t_employee")))
	require.Equal(t, KindInvariant, ClassOf(ErrBitsetOverflow.New(70, 64)))
	require.Equal(t, KindInvariant, ClassOf(ErrCorruptStatistics.New("idx_a", "negative pkeys")))
	require.Equal(t, KindUnsupported, ClassOf(ErrUnsupportedConstruct.New("class hierarchy index-join")))
}

func TestErrorMessages(t *testing.T) {
	err := ErrCatalog.New("S")
	require.Contains(t, err.Error(), "S")
	require.True(t, ErrCatalog.Is(err))
	require.False(t, ErrAlloc.Is(err))
}
