package codec_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jgaa/deldupes/internal/codec"
)

func Test_FileMeta_RoundTrip_Without_Prefix(t *testing.T) {
	t.Parallel()

	var hash [codec.HashSize]byte
	for i := range hash {
		hash[i] = byte(i)
	}

	in := codec.FileMeta{
		Size:      123456,
		MtimeSecs: 1700000000,
		Hash256:   hash,
		HasPrefix: false,
		PathID:    42,
	}

	buf := codec.EncodeFileMeta(in)

	out, err := codec.DecodeFileMeta(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func Test_FileMeta_RoundTrip_With_Prefix(t *testing.T) {
	t.Parallel()

	var hash [codec.HashSize]byte
	var prefix [codec.PrefixHashSize]byte

	for i := range hash {
		hash[i] = byte(i + 1)
	}

	for i := range prefix {
		prefix[i] = byte(i + 2)
	}

	in := codec.FileMeta{
		Size:       99,
		MtimeSecs:  1,
		Hash256:    hash,
		HasPrefix:  true,
		SHA1Prefix: prefix,
		PathID:     7,
	}

	buf := codec.EncodeFileMeta(in)

	out, err := codec.DecodeFileMeta(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if diff := cmp.Diff(in, out); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func Test_FileMeta_Encoded_Length_Matches_Layout(t *testing.T) {
	t.Parallel()

	withoutPrefix := codec.EncodeFileMeta(codec.FileMeta{HasPrefix: false})
	if want := 1 + 8 + 8 + codec.HashSize + 1 + codec.IDSize; len(withoutPrefix) != want {
		t.Fatalf("len=%d, want %d", len(withoutPrefix), want)
	}

	withPrefix := codec.EncodeFileMeta(codec.FileMeta{HasPrefix: true})
	if want := 1 + 8 + 8 + codec.HashSize + 1 + codec.PrefixHashSize + codec.IDSize; len(withPrefix) != want {
		t.Fatalf("len=%d, want %d", len(withPrefix), want)
	}
}

func Test_DecodeFileMeta_Rejects_Truncated_Buffer(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeFileMeta(codec.FileMeta{HasPrefix: true})

	_, err := codec.DecodeFileMeta(buf[:len(buf)-1])
	if !errors.Is(err, codec.ErrTruncated) {
		t.Fatalf("err=%v, want ErrTruncated", err)
	}
}

func Test_DecodeFileMeta_Rejects_Future_Version(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeFileMeta(codec.FileMeta{})
	buf[0] = codec.FileMetaVersion1 + 1

	_, err := codec.DecodeFileMeta(buf)
	if !errors.Is(err, codec.ErrUnsupportedVersion) {
		t.Fatalf("err=%v, want ErrUnsupportedVersion", err)
	}
}

func Test_DecodeFileMeta_Rejects_Bad_HasPrefix_Byte(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeFileMeta(codec.FileMeta{HasPrefix: false})
	buf[1+8+8+codec.HashSize] = 7

	_, err := codec.DecodeFileMeta(buf)
	if !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("err=%v, want ErrMalformed", err)
	}
}

func Test_FileState_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, s := range []codec.State{codec.StateLive, codec.StateReplaced, codec.StateMissing} {
		buf := codec.EncodeFileState(s)

		out, err := codec.DecodeFileState(buf)
		if err != nil {
			t.Fatalf("decode %v: %v", s, err)
		}

		if out != s {
			t.Fatalf("got %v, want %v", out, s)
		}
	}
}

func Test_DecodeFileState_Rejects_Unknown_State(t *testing.T) {
	t.Parallel()

	_, err := codec.DecodeFileState([]byte{99})
	if !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("err=%v, want ErrMalformed", err)
	}
}

func Test_PathCurrent_RoundTrip(t *testing.T) {
	t.Parallel()

	buf := codec.EncodePathCurrent(1234567890)

	got, err := codec.DecodePathCurrent(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if got != 1234567890 {
		t.Fatalf("got %d, want 1234567890", got)
	}
}

func Test_IDList_RoundTrip_Empty(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeIDList(nil)

	got, err := codec.DecodeIDList(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}

func Test_IDList_RoundTrip_Many(t *testing.T) {
	t.Parallel()

	ids := []uint64{1, 2, 3, 100, 1 << 40}

	buf := codec.EncodeIDList(ids)

	got, err := codec.DecodeIDList(buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(got) != len(ids) {
		t.Fatalf("got %v, want %v", got, ids)
	}

	for i := range ids {
		if got[i] != ids[i] {
			t.Fatalf("got %v, want %v", got, ids)
		}
	}
}

func Test_DecodeIDList_Rejects_Non_Ascending_Ids(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeIDList([]uint64{5, 5})

	_, err := codec.DecodeIDList(buf)
	if !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("err=%v, want ErrMalformed", err)
	}
}

func Test_DecodeIDList_Rejects_Truncated_Buffer(t *testing.T) {
	t.Parallel()

	buf := codec.EncodeIDList([]uint64{1, 2, 3})

	_, err := codec.DecodeIDList(buf[:len(buf)-1])
	if !errors.Is(err, codec.ErrTruncated) {
		t.Fatalf("err=%v, want ErrTruncated", err)
	}
}

func Test_EncodeIDList_Is_Deterministic(t *testing.T) {
	t.Parallel()

	ids := []uint64{1, 2, 3}

	a := codec.EncodeIDList(ids)
	b := codec.EncodeIDList(ids)

	if !bytes.Equal(a, b) {
		t.Fatalf("encoding not deterministic: %x vs %x", a, b)
	}
}
