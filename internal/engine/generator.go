package engine

import "github.com/you-humble/mediafanout/internal/domain"

type GeneratorParams struct {
	Options *Options
	File    *File
	// Size is the number of ingress bytes actually read.
	Size       int64
	Transforms []domain.Outcome
}

// GeneratorFunc shapes the value returned for one handled file.
type GeneratorFunc func(p GeneratorParams) any

// UploadedFile is the default result: the file's fields plus its outcomes.
type UploadedFile struct {
	FieldName    string `json:"field_name"`
	OriginalName string `json:"original_name"`
	MIMEType     string `json:"mime_type"`
	Size         int64  `json:"size"`

	Transforms []domain.Outcome `json:"transforms"`
}

func DefaultGenerator(p GeneratorParams) any {
	size := p.File.Size
	if size < 0 || (size == 0 && p.Size > 0) {
		size = p.Size
	}

	transforms := p.Transforms
	if transforms == nil {
		transforms = []domain.Outcome{}
	}

	return UploadedFile{
		FieldName:    p.File.FieldName,
		OriginalName: p.File.OriginalName,
		MIMEType:     p.File.MIMEType,
		Size:         size,
		Transforms:   transforms,
	}
}

func (u UploadedFile) Record() domain.FileRecord {
	return domain.FileRecord{
		FieldName:    u.FieldName,
		OriginalName: u.OriginalName,
		MIMEType:     u.MIMEType,
		Size:         u.Size,
		Transforms:   u.Transforms,
	}
}
