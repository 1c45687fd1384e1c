package domain

// Study is one patient examination episode. It groups the series/instances
// acquired during the exam and the findings derived from its report.
type Study struct {
	StudyUID        string `json:"studyId"`
	CleanReportText string `json:"cleanReportText,omitempty"`
}

// Finding is a structured (name, certainty) fact extracted from a study report.
type Finding struct {
	StudyUID string    `json:"study_id"`
	Name     string    `json:"name"`
	Value    Certainty `json:"value"`
}

type Series struct {
	SeriesUID        string  `json:"series_uid"`
	StudyUID         string  `json:"study_uid"`
	Modality         string  `json:"modality"`
	BodyPartExamined *string `json:"body_part_examined,omitempty"`
}

// Instance is a single DICOM object. Immutable once indexed.
type Instance struct {
	StudyUID         string  `json:"StudyInstanceUID"`
	SeriesUID        string  `json:"SeriesInstanceUID"`
	SOPUID           string  `json:"SOPInstanceUID"`
	Modality         string  `json:"Modality"`
	BodyPartExamined *string `json:"BodyPartExamined,omitempty"`
	AcquisitionDate  string  `json:"AcquisitionDate"`
	AcquisitionTime  string  `json:"AcquisitionTime"`
	ObjectKey        string  `json:"-"`
}

// StudyFilter constrains a study listing. Zero-value fields mean no
// constraint on that axis. Name-only filters match studies that have any
// record for that finding; value-only filters match any finding with that
// value. Unknown names or values simply match nothing.
type StudyFilter struct {
	FindingName  string
	FindingValue string
}

func (f StudyFilter) IsZero() bool {
	return f.FindingName == "" && f.FindingValue == ""
}
