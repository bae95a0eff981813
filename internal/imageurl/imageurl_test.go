package imageurl

import "testing"

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "bare host", in: "example.com", want: "https://example.com"},
		{name: "empty", in: "", want: ""},
		{name: "whitespace only", in: "   ", want: ""},
		{name: "uppercase scheme kept", in: "HTTP://x.io", want: "HTTP://x.io"},
		{name: "https kept", in: "https://x.io/path?q=1", want: "https://x.io/path?q=1"},
		{name: "http kept", in: "http://x.io", want: "http://x.io"},
		{name: "trimmed", in: "  myapp.io \n", want: "https://myapp.io"},
		{name: "other scheme gets prefixed", in: "ftp://x.io", want: "https://ftp://x.io"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.in); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeURLIdempotent(t *testing.T) {
	inputs := []string{
		"", " ", "example.com", "HTTP://x.io", "hTtPs://y.io", "  z.io  ",
		"ftp://x", "//double", "https://", "http:/broken", "日本.jp", "\thttps://tab.io",
	}
	for _, in := range inputs {
		once := NormalizeURL(in)
		if twice := NormalizeURL(once); twice != once {
			t.Errorf("NormalizeURL not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestIsPersistentImageReference(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{in: "", want: false},
		{in: "  ", want: false},
		{in: "blob:http://localhost:3000/9b1f6c1e", want: false},
		{in: "BLOB:http://localhost/x", want: false},
		{in: "https://cdn.example/img.png", want: true},
		{in: "https://image.thum.io/get/width/640/crop/420/noanimate/https://x.io", want: true},
	}

	for _, tt := range tests {
		if got := IsPersistentImageReference(tt.in); got != tt.want {
			t.Errorf("IsPersistentImageReference(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestBuildScreenshotURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "bare host", in: "myapp.io", want: "https://image.thum.io/get/width/640/crop/420/noanimate/https://myapp.io"},
		{name: "encoded like encodeURI", in: "https://x.io/a b?q=é", want: "https://image.thum.io/get/width/640/crop/420/noanimate/https://x.io/a%20b?q=%C3%A9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildScreenshotURL(tt.in); got != tt.want {
				t.Errorf("BuildScreenshotURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBuildProbeURL(t *testing.T) {
	want := "https://api.microlink.io/?url=https%3A%2F%2Fx.io%2Fa&screenshot=true&meta=false&embed=screenshot.url&viewport.width=640&viewport.height=420"
	if got := BuildProbeURL("", "https://x.io/a"); got != want {
		t.Errorf("BuildProbeURL() = %q, want %q", got, want)
	}

	got := BuildProbeURL("http://127.0.0.1:9000/render?key=k", "https://x.io")
	wantPrefix := "http://127.0.0.1:9000/render?key=k&url=https%3A%2F%2Fx.io&"
	if len(got) < len(wantPrefix) || got[:len(wantPrefix)] != wantPrefix {
		t.Errorf("BuildProbeURL() with query endpoint = %q, want prefix %q", got, wantPrefix)
	}
}

func TestOptimizeImageURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty",
			in:   "",
			want: "",
		},
		{
			name: "unrecognized trimmed",
			in:   " https://cdn.example/img.png ",
			want: "https://cdn.example/img.png",
		},
		{
			name: "unrecognized untouched",
			in:   "https://cdn.example/img.png?w=10",
			want: "https://cdn.example/img.png?w=10",
		},
		{
			name: "screenshot resized",
			in:   "https://image.thum.io/get/width/320/crop/200/noanimate/https://myapp.io",
			want: "https://image.thum.io/get/width/640/crop/420/noanimate/https://myapp.io",
		},
		{
			name: "screenshot only first segment rewritten",
			in:   "https://image.thum.io/get/width/320/crop/200/noanimate/https://x.io/width/5/",
			want: "https://image.thum.io/get/width/640/crop/420/noanimate/https://x.io/width/5/",
		},
		{
			name: "cdn params replaced",
			in:   "https://images.unsplash.com/photo-1611532736597-de2d4265fba3?w=600&q=80",
			want: "https://images.unsplash.com/photo-1611532736597-de2d4265fba3?w=720&q=75&auto=format",
		},
		{
			name: "cdn other params preserved",
			in:   "https://images.unsplash.com/photo-1?ixlib=rb-4.0.3&w=600&fit=crop",
			want: "https://images.unsplash.com/photo-1?ixlib=rb-4.0.3&w=720&fit=crop&q=75&auto=format",
		},
		{
			name: "cdn without query",
			in:   "https://images.unsplash.com/photo-1",
			want: "https://images.unsplash.com/photo-1?w=720&q=75&auto=format",
		},
		{
			name: "cdn duplicate keys collapse",
			in:   "https://images.unsplash.com/photo-1?q=1&q=2",
			want: "https://images.unsplash.com/photo-1?q=75&w=720&auto=format",
		},
		{
			name: "cdn unparseable fails open",
			in:   "https://images.unsplash.com/%zz?w=1",
			want: "https://images.unsplash.com/%zz?w=1",
		},
		{
			name: "cdn without scheme fails open",
			in:   "images.unsplash.com/photo-1?w=1",
			want: "images.unsplash.com/photo-1?w=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := OptimizeImageURL(tt.in); got != tt.want {
				t.Errorf("OptimizeImageURL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOptimizeImageURLIdempotent(t *testing.T) {
	inputs := []string{
		"https://images.unsplash.com/photo-1?ixlib=rb&w=600&q=80",
		"https://image.thum.io/get/width/320/crop/200/noanimate/https://myapp.io",
		"https://cdn.example/x.png",
	}
	for _, in := range inputs {
		once := OptimizeImageURL(in)
		if twice := OptimizeImageURL(once); twice != once {
			t.Errorf("OptimizeImageURL not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestResolveDisplayImage(t *testing.T) {
	tests := []struct {
		name  string
		image string
		url   string
		want  string
	}{
		{
			name: "no image uses screenshot",
			url:  "myapp.io",
			want: OptimizeImageURL(BuildScreenshotURL("https://myapp.io")),
		},
		{
			name:  "persistent image wins regardless of url",
			image: "https://cdn.example/img.png",
			url:   "myapp.io",
			want:  OptimizeImageURL("https://cdn.example/img.png"),
		},
		{
			name:  "ephemeral preview ignored",
			image: "blob:http://localhost/123",
			url:   "x.io",
			want:  "https://image.thum.io/get/width/640/crop/420/noanimate/https://x.io",
		},
		{
			name:  "cdn image optimized",
			image: "https://images.unsplash.com/photo-1?w=600&q=80",
			url:   "x.io",
			want:  "https://images.unsplash.com/photo-1?w=720&q=75&auto=format",
		},
		{
			name: "nothing to show",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveDisplayImage(tt.image, tt.url); got != tt.want {
				t.Errorf("ResolveDisplayImage(%q, %q) = %q, want %q", tt.image, tt.url, got, tt.want)
			}
		})
	}
}
