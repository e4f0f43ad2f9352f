package pkgroot

import (
	"strings"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validCatalog = `id: fgaddon
name: Official aircraft
description: Default hangar
version: 2024.1.0
simulator_version: ">= 2024.1"
packages:
  - id: c172p
    name: Cessna 172P
    type: aircraft
    urls: ["https://mirror.example.org/c172p.zip"]
  - id: w123n37
    name: Scenery w123n37
    type: scenery
    version: "2.0"
    urls:
      - https://a.example.org/w123n37.tgz
      - https://b.example.org/w123n37.tgz
    sha256: 0f343b0931126a20f133d67c2b018a3b0f343b0931126a20f133d67c2b018a3b
    size: 1024
`

func TestDecodeMetadata_Valid(t *testing.T) {
	t.Parallel()

	md, err := DecodeMetadata([]byte(validCatalog), semver.MustParse("2024.1.1"))
	require.NoError(t, err)

	assert.Equal(t, "fgaddon", md.ID)
	assert.Equal(t, "Official aircraft", md.Name)
	require.Len(t, md.Packages, 2)

	scenery := md.PackagesOfType(PackageScenery)
	require.Len(t, scenery, 1)
	assert.Equal(t, "w123n37", scenery[0].ID)
	assert.Len(t, scenery[0].URLs, 2)
	assert.Equal(t, int64(1024), scenery[0].Size)

	p, ok := md.Package("c172p")
	require.True(t, ok)
	assert.Equal(t, PackageAircraft, p.Type)

	_, ok = md.Package("missing")
	assert.False(t, ok)
}

func TestDecodeMetadata_JSONDocument(t *testing.T) {
	t.Parallel()

	doc := `{"id": "json", "name": "JSON catalog", "version": "1.2.3", "packages": []}`
	md, err := DecodeMetadata([]byte(doc), nil)
	require.NoError(t, err)
	assert.Equal(t, "json", md.ID)
	assert.Empty(t, md.Packages)
}

func TestDecodeMetadata_Rejects(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		doc      string
		wantErr  error
		contains string
	}{
		"empty document": {
			doc:     "",
			wantErr: ErrInvalidMetadata,
		},
		"scalar document": {
			doc:     "just a string",
			wantErr: ErrInvalidMetadata,
		},
		"missing packages": {
			doc:      "id: x\nname: X\nversion: 1.0.0\n",
			wantErr:  ErrInvalidMetadata,
			contains: "packages",
		},
		"bad package type": {
			doc:     "id: x\nname: X\nversion: 1.0.0\npackages:\n  - id: p\n    name: P\n    type: livery\n    urls: [u]\n",
			wantErr: ErrInvalidMetadata,
		},
		"bad checksum": {
			doc:     "id: x\nname: X\nversion: 1.0.0\npackages:\n  - id: p\n    name: P\n    type: scenery\n    urls: [u]\n    sha256: nope\n",
			wantErr: ErrInvalidMetadata,
		},
		"package id escapes": {
			doc:     "id: x\nname: X\nversion: 1.0.0\npackages:\n  - id: ../p\n    name: P\n    type: scenery\n    urls: [u]\n",
			wantErr: ErrInvalidMetadata,
		},
		"duplicate package": {
			doc:      "id: x\nname: X\nversion: 1.0.0\npackages:\n  - {id: p, name: P, type: scenery, urls: [u]}\n  - {id: p, name: Q, type: aircraft, urls: [v]}\n",
			wantErr:  ErrInvalidMetadata,
			contains: "duplicate package id",
		},
		"version not semver": {
			doc:      "id: x\nname: X\nversion: latest\npackages: []\n",
			wantErr:  ErrInvalidMetadata,
			contains: "version",
		},
		"bad constraint": {
			doc:     "id: x\nname: X\nversion: 1.0.0\nsimulator_version: \"not a constraint\"\npackages: []\n",
			wantErr: ErrInvalidMetadata,
		},
		"incompatible": {
			doc:      "id: x\nname: X\nversion: 1.0.0\nsimulator_version: \"< 2020\"\npackages: []\n",
			wantErr:  ErrIncompatible,
			contains: "running 2024.1.1",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := DecodeMetadata([]byte(tc.doc), semver.MustParse("2024.1.1"))
			require.ErrorIs(t, err, tc.wantErr)
			if tc.contains != "" {
				assert.True(t, strings.Contains(err.Error(), tc.contains), err.Error())
			}
		})
	}
}

func TestDecodeMetadata_NilVersionSkipsCompatibility(t *testing.T) {
	t.Parallel()

	doc := "id: x\nname: X\nversion: 1.0.0\nsimulator_version: \"< 2020\"\npackages: []\n"
	_, err := DecodeMetadata([]byte(doc), nil)
	require.NoError(t, err)
}
