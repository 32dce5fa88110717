package report

// ArtifactError reports a filesystem failure while writing a report or
// reading one of its images. Its message is the underlying error's.
type ArtifactError struct {
	Path string
	Err  error
}

func (e *ArtifactError) Error() string {
	return e.Err.Error()
}

func (e *ArtifactError) Unwrap() error {
	return e.Err
}
