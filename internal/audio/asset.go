package audio

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Asset is a stored audio payload: the blob-store key it lives under, the
// MIME type the operator uploaded it with, and the raw bytes. Decoded
// playback handles derived from an Asset belong to the Controller.
type Asset struct {
	Key  string
	MIME string
	Data []byte
}

// blobReader adapts an in-memory payload to the ReadSeekCloser the decoders
// want. Close is a no-op; the bytes stay owned by the Asset.
type blobReader struct {
	*bytes.Reader
}

func (blobReader) Close() error { return nil }

func newBlobReader(data []byte) blobReader {
	return blobReader{bytes.NewReader(data)}
}

// decode picks a decoder by MIME type, falling back to sniffing the payload's
// magic bytes when the type is missing or unrecognized.
func decode(a *Asset) (beep.StreamSeekCloser, beep.Format, error) {
	switch normalizeMIME(a.MIME) {
	case "wav":
		return wav.Decode(newBlobReader(a.Data))
	case "mp3":
		return mp3.Decode(newBlobReader(a.Data))
	case "ogg":
		return vorbis.Decode(newBlobReader(a.Data))
	}

	switch {
	case bytes.HasPrefix(a.Data, []byte("RIFF")):
		return wav.Decode(newBlobReader(a.Data))
	case bytes.HasPrefix(a.Data, []byte("OggS")):
		return vorbis.Decode(newBlobReader(a.Data))
	case bytes.HasPrefix(a.Data, []byte("ID3")), len(a.Data) > 1 && a.Data[0] == 0xff:
		return mp3.Decode(newBlobReader(a.Data))
	}
	return nil, beep.Format{}, fmt.Errorf("unsupported audio payload %q (mime %q)", a.Key, a.MIME)
}

func normalizeMIME(mime string) string {
	mime = strings.ToLower(mime)
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		return "wav"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "audio/vorbis", "application/ogg":
		return "ogg"
	}
	return ""
}
