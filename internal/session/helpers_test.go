package session

import (
	"archive/zip"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type zipBuilder struct {
	w *zip.Writer
}

func newZip(out io.Writer) *zipBuilder {
	return &zipBuilder{w: zip.NewWriter(out)}
}

func (z *zipBuilder) add(t *testing.T, name string, data []byte) {
	t.Helper()
	f, err := z.w.Create(name)
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
}

func (z *zipBuilder) close(t *testing.T) {
	t.Helper()
	require.NoError(t, z.w.Close())
}
