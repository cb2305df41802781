package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://ledger-backups/daily/backup_20241205_1407.json", "ledger-backups", "daily/backup_20241205_1407.json", false},
		{"gs://ledger-backups/b.json", "ledger-backups", "b.json", false},
		{"gs://ledger-backups", "", "", true},
		{"gs:///b.json", "", "", true},
		{"/tmp/b.json", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q", tt.uri, bucket, object)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	if got := ExtractFilenameFromGCSURI("gs://b/daily/backup_20241205_1407.json"); got != "backup_20241205_1407.json" {
		t.Errorf("got %q", got)
	}
	if got := ExtractFilenameFromGCSURI("gs://b"); got != "b" {
		t.Errorf("got %q", got)
	}
}

func TestObjectName(t *testing.T) {
	s := &BackupStore{bucket: "b", prefix: "ledger/backups"}
	if got := s.ObjectName("backup_1.json"); got != "ledger/backups/backup_1.json" {
		t.Errorf("ObjectName() = %q", got)
	}
	s.prefix = ""
	if got := s.ObjectName("backup_1.json"); got != "backup_1.json" {
		t.Errorf("ObjectName() = %q", got)
	}
}
