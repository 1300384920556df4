package domain

const (
	KindDirectory = "dir"
	KindFile      = "file"
)

// DirEntry is one row of a directory listing. ModifiedTime is in
// milliseconds since the Unix epoch.
type DirEntry struct {
	Name         string `json:"name"`
	Size         int64  `json:"sz"`
	ModifiedTime int64  `json:"mtime"`
	Kind         string `json:"type"`
}

// DirListing is the payload of the dir event. Files is nil when the
// directory could not be read.
type DirListing struct {
	Cwd   []string   `json:"cwd"`
	Files []DirEntry `json:"files"`
}
