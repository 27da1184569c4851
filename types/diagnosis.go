package types

// Localization is the body site a lesion image was taken from.
type Localization string

const (
	LocalizationAbdomen        Localization = "abdomen"
	LocalizationAcral          Localization = "acral"
	LocalizationBack           Localization = "back"
	LocalizationChest          Localization = "chest"
	LocalizationEar            Localization = "ear"
	LocalizationFace           Localization = "face"
	LocalizationFoot           Localization = "foot"
	LocalizationGenital        Localization = "genital"
	LocalizationHand           Localization = "hand"
	LocalizationLowerExtremity Localization = "lower extremity"
	LocalizationNeck           Localization = "neck"
	LocalizationScalp          Localization = "scalp"
	LocalizationTrunk          Localization = "trunk"
	LocalizationUnknown        Localization = "unknown"
	LocalizationUpperExtremity Localization = "upper extremity"
)

// Localizations lists every accepted body site, in display order.
var Localizations = []Localization{
	LocalizationAbdomen,
	LocalizationAcral,
	LocalizationBack,
	LocalizationChest,
	LocalizationEar,
	LocalizationFace,
	LocalizationFoot,
	LocalizationGenital,
	LocalizationHand,
	LocalizationLowerExtremity,
	LocalizationNeck,
	LocalizationScalp,
	LocalizationTrunk,
	LocalizationUnknown,
	LocalizationUpperExtremity,
}

// Valid reports whether l is one of the accepted body sites.
// Matching is exact: no trimming or case folding.
func (l Localization) Valid() bool {
	for _, known := range Localizations {
		if l == known {
			return true
		}
	}
	return false
}

// ImageFile is a single lesion photograph picked by the user.
type ImageFile struct {
	// Filename is the name of the file on the user's machine.
	Filename string

	// ContentType is the file's MIME type as reported by the picker,
	// e.g. "image/jpeg". It is forwarded unchanged.
	ContentType string

	// Data is the raw file content.
	Data []byte
}

// DiagnosisSubmission is the transient state of one diagnosis form.
// It is discarded once the request resolves.
type DiagnosisSubmission struct {
	// Localization is the selected body site.
	Localization Localization

	// Images holds the files picked by the user. A valid submission
	// holds exactly one.
	Images []ImageFile
}

// DiagnosisMetadata is the JSON part sent next to the image.
type DiagnosisMetadata struct {
	Localization Localization `json:"localization"`
}

// DiagnosisRecord is a stored classification, as listed in the history.
// The client never creates, updates or deletes records.
type DiagnosisRecord struct {
	// DiagnosisID is the unique identifier of the record.
	DiagnosisID string `json:"diagnosisId"`

	// UserID identifies the owner of the record.
	UserID string `json:"userId"`

	// Sex is copied from the owner's profile at submission time.
	Sex string `json:"sex"`

	// Age is copied from the owner's profile at submission time.
	Age int `json:"age"`

	// Localization is the body site the image was taken from.
	Localization Localization `json:"localization"`

	// ImageURL references the stored image. It is either a public
	// http(s) URL or an object reference such as s3://bucket/key.
	ImageURL string `json:"imageUrl"`

	// DiagnosisResult is the classification code, e.g. "mel".
	DiagnosisResult string `json:"diagnosisResult"`
}
