package integrations

// Exporter converts a finished download into another format and returns the
// path of the written file.
type Exporter interface {
	Export(src, dest string) (string, error)
}
