package model

// HallucinationType is the category of alteration applied to a citation
type HallucinationType string

const (
	FabricatedCase      HallucinationType = "fabricated_case"
	WrongCitation       HallucinationType = "wrong_citation"
	Mischaracterization HallucinationType = "mischaracterization"
	Misquotation        HallucinationType = "misquotation"
)

// HallucinationTypes lists every type in display order
var HallucinationTypes = []HallucinationType{FabricatedCase, WrongCitation, Mischaracterization, Misquotation}

// Valid reports whether t is a known hallucination type
func (t HallucinationType) Valid() bool {
	switch t {
	case FabricatedCase, WrongCitation, Mischaracterization, Misquotation:
		return true
	}
	return false
}

// Label returns the human-readable name of the type
func (t HallucinationType) Label() string {
	switch t {
	case FabricatedCase:
		return "Fabricated Case"
	case WrongCitation:
		return "Wrong Citation"
	case Mischaracterization:
		return "Mischaracterization"
	case Misquotation:
		return "Misquotation"
	default:
		return string(t)
	}
}

// Short returns the two-letter code used in CSS class names
func (t HallucinationType) Short() string {
	switch t {
	case FabricatedCase:
		return "fab"
	case WrongCitation:
		return "wc"
	case Mischaracterization:
		return "mc"
	case Misquotation:
		return "mq"
	default:
		return "other"
	}
}

// Verdict is a verifier's call on a citation
type Verdict string

const (
	VerdictLegit Verdict = "legit"
	VerdictFake  Verdict = "fake"
	VerdictSkip  Verdict = "skip" // Only appears in scoring details
)

// Valid reports whether v can be submitted as a flag
func (v Verdict) Valid() bool {
	return v == VerdictLegit || v == VerdictFake
}

// Option is one candidate alteration for a citation
type Option struct {
	ID                  string `json:"id"`
	Label               string `json:"label"`
	Difficulty          string `json:"difficulty,omitempty"`
	OriginalText        string `json:"original_text,omitempty"`        // Quoted span replaced (mischaracterization/misquotation)
	ReplacementText     string `json:"replacement_text,omitempty"`     // Text that replaces OriginalText
	ReplacementCitation string `json:"replacement_citation,omitempty"` // Citation string that replaces the citation
}

// Preview returns what the option would put in the brief
func (o Option) Preview() string {
	if o.ReplacementCitation != "" {
		return o.ReplacementCitation
	}
	return o.ReplacementText
}

// CitationOptions groups the options available for one citation
type CitationOptions struct {
	OriginalDisplay string                         `json:"original_display"`
	CaseName        string                         `json:"case_name,omitempty"`
	Options         map[HallucinationType][]Option `json:"options"`
}

// Catalog maps citation IDs to their available options
type Catalog map[string]CitationOptions

// Lookup finds an option by citation, type and option id
func (c Catalog) Lookup(citationID string, htype HallucinationType, optionID string) (Option, bool) {
	cite, ok := c[citationID]
	if !ok {
		return Option{}, false
	}
	for _, opt := range cite.Options[htype] {
		if opt.ID == optionID {
			return opt, true
		}
	}
	return Option{}, false
}

// AnnotationKind tags the Annotation variant
type AnnotationKind int

const (
	Unaltered AnnotationKind = iota
	Swapped
	Flagged
)

func (k AnnotationKind) String() string {
	switch k {
	case Swapped:
		return "swapped"
	case Flagged:
		return "flagged"
	default:
		return "unaltered"
	}
}

// SwapDetail describes a confirmed swap
type SwapDetail struct {
	Type               HallucinationType `json:"hallucination_type"`
	OptionID           string            `json:"option_id"`
	OriginalText       string            `json:"original_text,omitempty"`
	ReplacementText    string            `json:"replacement_text,omitempty"`
	ReplacementDisplay string            `json:"replacement_display,omitempty"`
}

// Annotation is the client-side state of one citation.
// Swap is set only for Swapped, Verdict only for Flagged.
type Annotation struct {
	Kind    AnnotationKind `json:"kind"`
	Swap    *SwapDetail    `json:"swap,omitempty"`
	Verdict Verdict        `json:"verdict,omitempty"`
}

// SwapRecord is a swap as stored by the server
type SwapRecord struct {
	CitationID        string            `json:"citation_id"`
	HallucinationType HallucinationType `json:"hallucination_type"`
	OptionID          string            `json:"option_id"`
}

// FlagRecord is a flag as stored by the server
type FlagRecord struct {
	CitationID string  `json:"citation_id"`
	Verdict    Verdict `json:"verdict"`
}
