package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/offlinekit/pkg/resource"
)

func TestIsMapboxURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"mapbox://mapbox.streets", true},
		{"https://api.mapbox.com/v4/mapbox.streets/1/0/0.pbf", true},
		{"https://a.tiles.mapbox.com/v4/mapbox.streets/1/0/0.pbf", true},
		{"https://api.mapbox.cn/v4/x/1/0/0.pbf", true},
		{"https://tiles.example.com/1/0/0.pbf", false},
		{"https://mapbox.com.evil.example/1/0/0.pbf", false},
		{"s3://bucket/tiles/1/0/0.pbf", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsMapboxURL(tt.url))
		})
	}
}

func TestMapboxResolver_Resolve(t *testing.T) {
	r := MapboxResolver{AccessToken: "pk.test"}

	tests := []struct {
		name string
		raw  string
		kind resource.Kind
		want string
	}{
		{
			name: "style",
			raw:  "mapbox://styles/mapbox/streets-v12",
			kind: resource.KindStyle,
			want: "https://api.mapbox.com/styles/v1/mapbox/streets-v12?access_token=pk.test",
		},
		{
			name: "source",
			raw:  "mapbox://mapbox.mapbox-streets-v8,mapbox.mapbox-terrain-v2",
			kind: resource.KindSource,
			want: "https://api.mapbox.com/v4/mapbox.mapbox-streets-v8,mapbox.mapbox-terrain-v2.json?secure&access_token=pk.test",
		},
		{
			name: "glyphs",
			raw:  "mapbox://fonts/mapbox/Open Sans Regular/0-255.pbf",
			kind: resource.KindGlyphs,
			want: "https://api.mapbox.com/fonts/v1/mapbox/Open Sans Regular/0-255.pbf?access_token=pk.test",
		},
		{
			name: "sprite json at 2x",
			raw:  "mapbox://sprites/mapbox/streets-v12@2x.json",
			kind: resource.KindSpriteJSON,
			want: "https://api.mapbox.com/styles/v1/mapbox/streets-v12/sprite@2x.json?access_token=pk.test",
		},
		{
			name: "sprite image",
			raw:  "mapbox://sprites/mapbox/streets-v12.png",
			kind: resource.KindSpriteImage,
			want: "https://api.mapbox.com/styles/v1/mapbox/streets-v12/sprite.png?access_token=pk.test",
		},
		{
			name: "tile",
			raw:  "mapbox://tiles/mapbox.streets/3/1/2.vector.pbf",
			kind: resource.KindTile,
			want: "https://api.mapbox.com/v4/mapbox.streets/3/1/2.vector.pbf?access_token=pk.test",
		},
		{
			name: "non mapbox unchanged",
			raw:  "https://tiles.example.com/3/1/2.pbf",
			kind: resource.KindTile,
			want: "https://tiles.example.com/3/1/2.pbf",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.raw, tt.kind)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMapboxResolver_CustomBase(t *testing.T) {
	r := MapboxResolver{BaseURL: "http://127.0.0.1:9000/"}
	got, err := r.Resolve("mapbox://styles/u/s", resource.KindStyle)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9000/styles/v1/u/s", got)
}

func TestMapboxResolver_InvalidSprite(t *testing.T) {
	_, err := MapboxResolver{}.Resolve("mapbox://sprites/nouser", resource.KindSpriteJSON)
	assert.Error(t, err)
}
