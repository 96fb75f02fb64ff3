package bytesize

import "testing"

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"plain number", "1024", 1024, false},
		{"zero", "0", 0, false},
		{"bytes suffix", "512B", 512, false},
		{"binary kibi", "1Ki", 1024, false},
		{"binary mebi", "100MiB", 100 * MiB, false},
		{"binary gibi", "1Gi", GiB, false},
		{"binary tebi", "2TiB", 2 * TiB, false},
		{"decimal kilo", "1K", 1000, false},
		{"decimal mega", "100MB", 100 * MB, false},
		{"decimal giga", "1G", GB, false},
		{"case insensitive", "1gI", GiB, false},
		{"surrounding space", "  1Gi  ", GiB, false},
		{"space before unit", "1 Gi", GiB, false},
		{"fractional", "1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"fractional below one", "0.5Gi", 512 * MiB, false},
		{"empty", "", 0, true},
		{"blank", "   ", 0, true},
		{"unknown unit", "1Xi", 0, true},
		{"negative", "-1Gi", 0, true},
		{"unit only", "Gi", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseByteSize(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseByteSize(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseByteSize(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestByteSizeUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("64Mi")); err != nil {
		t.Fatalf("UnmarshalText failed: %v", err)
	}
	if b != 64*MiB {
		t.Errorf("expected %d, got %d", 64*MiB, b)
	}
	if err := b.UnmarshalText([]byte("not-a-size")); err == nil {
		t.Error("expected error for invalid input")
	}
}

func TestByteSizeString(t *testing.T) {
	tests := []struct {
		input ByteSize
		want  string
	}{
		{512, "512B"},
		{2 * KiB, "2.00KiB"},
		{100 * MiB, "100.00MiB"},
		{ByteSize(1.5 * float64(GiB)), "1.50GiB"},
		{2 * TiB, "2.00TiB"},
	}
	for _, tt := range tests {
		if got := tt.input.String(); got != tt.want {
			t.Errorf("ByteSize(%d).String() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestByteSizeConversions(t *testing.T) {
	size := GiB
	if size.Uint64() != 1<<30 {
		t.Errorf("Uint64() = %d, want %d", size.Uint64(), 1<<30)
	}
	if size.Int64() != 1<<30 {
		t.Errorf("Int64() = %d, want %d", size.Int64(), 1<<30)
	}
}
