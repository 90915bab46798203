package triple

// Relation vocabulary.
const (
	HasName      = "hasName"
	HasSize      = "hasSize"
	HasType      = "hasType"
	HasCategory  = "hasCategory"
	HasRelevance = "hasRelevance"
	IsAnalyzed   = "isAnalyzed"

	RequiresAction    = "requiresAction"
	ContainsKeyword   = "containsKeyword"
	SuggestedCategory = "suggestedCategory"
	ContainsCode      = "containsCode"
	UsesLanguage      = "usesLanguage"
	MentionsFile      = "mentionsFile"
	HasInsight        = "hasInsight"
	WasAnalyzedAs     = "wasAnalyzedAs"
	MentionsEntity    = "mentionsEntity"

	CreatedAt   = "createdAt"
	ModifiedAt  = "modifiedAt"
	HasVersion  = "hasVersion"
	EvolvedFrom = "evolvedFrom"
	DerivedFrom = "derivedFrom"

	PotentialSolution  = "potentialSolution"
	CorrelatesWith     = "correlatesWith"
	SharesCategoryWith = "sharesCategoryWith"
	FollowsTemporally  = "followsTemporally"
	RelatedTo          = "relatedTo"
)

// Extraction sources.
const (
	SourceMetadata  = "metadata"
	SourceContent   = "content-analysis"
	SourceTemporal  = "temporal"
	SourceInference = "inference"
	SourceCrossDoc  = "cross-document"
	SourceRule      = "rule"
	SourceImport    = "import"
)
