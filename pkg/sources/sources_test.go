package sources

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/haivivi/tagmatch/pkg/catalog"
	"github.com/haivivi/tagmatch/pkg/storage"
)

func TestReadWithHeader(t *testing.T) {
	in := "tag,category,count,alias\n" +
		"long_hair,0,900000,\"longhair,長髪, \"\n" +
		"hatsune_miku,4,120000,\"初音ミク\"\n" +
		"highres,meta,5000000,\n"
	src, err := Read(strings.NewReader(in), "danbooru")
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "danbooru" || len(src.Records) != 3 {
		t.Fatalf("src = %+v", src)
	}
	r := src.Records[0]
	if r.Name != "long_hair" || r.Category != catalog.General || r.Popularity != 900000 {
		t.Errorf("record 0 = %+v", r)
	}
	if want := []string{"longhair", "長髪"}; !slices.Equal(r.Aliases, want) {
		t.Errorf("aliases = %q, want %q", r.Aliases, want)
	}
	if src.Records[1].Category != catalog.Character || src.Records[2].Category != catalog.Meta {
		t.Errorf("categories = %v, %v", src.Records[1].Category, src.Records[2].Category)
	}
	if src.Records[2].Aliases != nil {
		t.Errorf("empty alias field gave %q", src.Records[2].Aliases)
	}
}

func TestReadReorderedHeader(t *testing.T) {
	in := "\ufeffcount,Name,aliases\n42,cat_ears,\"nekomimi\"\n"
	src, err := Read(strings.NewReader(in), "x")
	if err != nil {
		t.Fatal(err)
	}
	r := src.Records[0]
	if r.Name != "cat_ears" || r.Popularity != 42 || r.Category != catalog.General || len(r.Aliases) != 1 {
		t.Errorf("record = %+v", r)
	}
}

func TestReadWithoutHeader(t *testing.T) {
	in := "school_uniform,0,300\nsome_artist,1,7,\"alias one,alias two\"\nshort\n"
	src, err := Read(strings.NewReader(in), "anima")
	if err != nil {
		t.Fatal(err)
	}
	if len(src.Records) != 3 {
		t.Fatalf("records = %+v", src.Records)
	}
	if r := src.Records[1]; r.Category != catalog.Artist || len(r.Aliases) != 2 {
		t.Errorf("record 1 = %+v", r)
	}
	if r := src.Records[2]; r.Name != "short" || r.Popularity != 0 {
		t.Errorf("record 2 = %+v", r)
	}
}

func TestReadMalformed(t *testing.T) {
	for name, in := range map[string]string{
		"count":    "tag,category,count\nlong_hair,0,many\n",
		"category": "long_hair,9,10\n",
		"quote":    "long_hair,0,\"10\n",
	} {
		_, err := Read(strings.NewReader(in), "bad")
		if err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	_, err := Read(strings.NewReader("x,0,abc\n"), "bad")
	if !errors.Is(err, ErrMalformed) || !strings.Contains(err.Error(), "bad:1") {
		t.Errorf("err = %v, want ErrMalformed at line 1", err)
	}
}

func TestReadFileAndStore(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "anima_tags.csv"), []byte("tag,count\nsmile,10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	src, err := ReadFile(filepath.Join(dir, "anima_tags.csv"), "")
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "anima_tags" || len(src.Records) != 1 {
		t.Errorf("ReadFile = %+v", src)
	}

	store, err := storage.NewLocal(dir)
	if err != nil {
		t.Fatal(err)
	}
	src, err = ReadStore(context.Background(), store, "anima_tags.csv", "anima")
	if err != nil {
		t.Fatal(err)
	}
	if src.Name != "anima" || src.Records[0].Name != "smile" {
		t.Errorf("ReadStore = %+v", src)
	}
	if _, err := ReadStore(context.Background(), store, "missing.csv", ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}
