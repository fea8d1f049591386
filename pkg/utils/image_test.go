package utils

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageExtension(t *testing.T) {
	dir := t.TempDir()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})

	pngFile := filepath.Join(dir, "a")
	f, err := os.Create(pngFile)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	jpgFile := filepath.Join(dir, "b")
	f, err = os.Create(jpgFile)
	require.NoError(t, err)
	require.NoError(t, jpeg.Encode(f, img, nil))
	require.NoError(t, f.Close())

	textFile := filepath.Join(dir, "c")
	require.NoError(t, os.WriteFile(textFile, []byte("not an image"), 0o644))

	assert.Equal(t, "png", ImageExtension(pngFile))
	assert.Equal(t, "jpg", ImageExtension(jpgFile))
	assert.Equal(t, "", ImageExtension(textFile))
	assert.Equal(t, "", ImageExtension(filepath.Join(dir, "missing")))
}
