package processor

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"squeeze/pkg/imgutil"
)

// Copied files keep their pixels and color profile but can drop the
// metadata segments an encoder would not have written.

var (
	app1Exif      = []byte("Exif\x00\x00")
	app1XMP       = []byte("http://ns.adobe.com/xap/1.0/\x00")
	app13PS       = []byte("Photoshop 3.0\x00")
	pngSignature  = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	errNotJPEG    = errors.New("invalid JPEG SOI")
	errNotPNG     = errors.New("invalid PNG signature")
	pngMetaChunks = map[string]bool{"tEXt": true, "zTXt": true, "iTXt": true, "eXIf": true, "tIME": true}
)

// canStrip reports whether stripMetadata understands kind.
func canStrip(kind imgutil.Kind) bool {
	return kind == imgutil.KindJPEG || kind == imgutil.KindPNG
}

func stripMetadata(kind imgutil.Kind, r io.Reader, w io.Writer) error {
	switch kind {
	case imgutil.KindJPEG:
		return stripJPEG(r, w)
	case imgutil.KindPNG:
		return stripPNG(r, w)
	default:
		return fmt.Errorf("cannot strip %s", kind)
	}
}

// stripJPEG copies segments up to the scan data, dropping EXIF, XMP and
// Photoshop/IPTC application segments. Everything from SOS on is copied as is.
func stripJPEG(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	soi := make([]byte, 2)
	if _, err := io.ReadFull(br, soi); err != nil {
		return err
	}
	if soi[0] != 0xff || soi[1] != 0xd8 {
		return errNotJPEG
	}
	if _, err := bw.Write(soi); err != nil {
		return err
	}

	for {
		marker, err := nextMarker(br)
		if err != nil {
			return err
		}

		switch {
		case marker == 0xd9: // EOI
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			return bw.Flush()
		case marker == 0xda: // SOS
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			if _, err := io.Copy(bw, br); err != nil {
				return err
			}
			return bw.Flush()
		case marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7):
			if _, err := bw.Write([]byte{0xff, marker}); err != nil {
				return err
			}
			continue
		}

		var lenBuf [2]byte
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return err
		}
		segLen := int(binary.BigEndian.Uint16(lenBuf[:]))
		if segLen < 2 {
			return errors.New("invalid JPEG segment length")
		}
		payload := make([]byte, segLen-2)
		if _, err := io.ReadFull(br, payload); err != nil {
			return err
		}
		if dropJPEGSegment(marker, payload) {
			continue
		}

		for _, part := range [][]byte{{0xff, marker}, lenBuf[:], payload} {
			if _, err := bw.Write(part); err != nil {
				return err
			}
		}
	}
}

// nextMarker skips fill bytes and returns the marker code after 0xff.
func nextMarker(br *bufio.Reader) (byte, error) {
	b, err := br.ReadByte()
	for err == nil && b != 0xff {
		b, err = br.ReadByte()
	}
	for err == nil && b == 0xff {
		b, err = br.ReadByte()
	}
	return b, err
}

func dropJPEGSegment(marker byte, payload []byte) bool {
	switch marker {
	case 0xe1:
		return bytes.HasPrefix(payload, app1Exif) || bytes.HasPrefix(payload, app1XMP)
	case 0xed:
		return bytes.HasPrefix(payload, app13PS)
	default:
		return false
	}
}

// stripPNG copies chunks up to IEND, dropping text, time and EXIF chunks.
// iCCP is kept.
func stripPNG(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)

	sig := make([]byte, len(pngSignature))
	if _, err := io.ReadFull(br, sig); err != nil {
		return err
	}
	if !bytes.Equal(sig, pngSignature) {
		return errNotPNG
	}
	if _, err := bw.Write(sig); err != nil {
		return err
	}

	var head [8]byte
	for {
		if _, err := io.ReadFull(br, head[:]); err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
		length := int64(binary.BigEndian.Uint32(head[:4]))
		name := string(head[4:])

		// Chunk data is followed by a 4-byte CRC.
		if pngMetaChunks[name] {
			if _, err := io.CopyN(io.Discard, br, length+4); err != nil {
				return err
			}
			continue
		}
		if _, err := bw.Write(head[:]); err != nil {
			return err
		}
		if _, err := io.CopyN(bw, br, length+4); err != nil {
			return err
		}
		if name == "IEND" {
			break
		}
	}
	return bw.Flush()
}
