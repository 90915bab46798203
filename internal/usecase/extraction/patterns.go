package extraction

import "regexp"

// codeSignatures detect source code regardless of language.
var codeSignatures = []*regexp.Regexp{
	regexp.MustCompile(`\bfunction\s*\w*\s*\([^)]*\)\s*\{`),
	regexp.MustCompile(`\bclass\s+\w+\s*[:{(]`),
	regexp.MustCompile(`\bdef\s+\w+\s*\([^)]*\)\s*:`),
	regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?\w+\s*\(`),
	regexp.MustCompile(`\b(?:if|for|while)\s*\([^)]*\)\s*\{`),
	regexp.MustCompile(`\b(?:const|let|var)\s+\w+\s*=`),
	regexp.MustCompile(`\breturn\s+[^;\n]+;`),
	regexp.MustCompile("```"),
	regexp.MustCompile(`#include\s*<`),
}

type languageSignature struct {
	language string
	patterns []*regexp.Regexp
}

// MinLanguageSignatures is the number of distinct signatures needed to declare a language.
const MinLanguageSignatures = 2

// languageSignatures are checked in order; ties go to the earlier language.
var languageSignatures = []languageSignature{
	{language: "javascript", patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunction\s*\w*\s*\(`),
		regexp.MustCompile(`\)\s*\{`),
		regexp.MustCompile(`\b(?:const|let|var)\s+\w+\s*=`),
		regexp.MustCompile(`=>`),
		regexp.MustCompile(`\bconsole\.\w+\(`),
		regexp.MustCompile(`\brequire\(\s*['"]`),
		regexp.MustCompile(`\bexport\s+(?:default\s+)?(?:function|class|const)\b`),
	}},
	{language: "python", patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bdef\s+\w+\s*\(`),
		regexp.MustCompile(`\bfrom\s+[\w.]+\s+import\b`),
		regexp.MustCompile(`(?m)^\s*import\s+\w+\s*$`),
		regexp.MustCompile(`\bprint\s*\(`),
		regexp.MustCompile(`\bself\.\w+`),
		regexp.MustCompile(`\belif\b`),
		regexp.MustCompile(`__\w+__`),
	}},
	{language: "go", patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bfunc\s+(?:\([^)]*\)\s*)?\w+\s*\(`),
		regexp.MustCompile(`(?m)^\s*package\s+\w+\s*$`),
		regexp.MustCompile(`:=`),
		regexp.MustCompile(`\bfmt\.\w+\(`),
		regexp.MustCompile(`\bgo\s+func\b`),
		regexp.MustCompile(`\bchan\s+\w+`),
		regexp.MustCompile(`\bif\s+err\s*!=\s*nil`),
	}},
	{language: "java", patterns: []*regexp.Regexp{
		regexp.MustCompile(`\bpublic\s+(?:static\s+)?(?:final\s+)?\w+(?:<[^>]+>)?\s+\w+`),
		regexp.MustCompile(`\bSystem\.out\.print`),
		regexp.MustCompile(`\bimport\s+java\.`),
		regexp.MustCompile(`\bprivate\s+\w+(?:<[^>]+>)?\s+\w+\s*[;=]`),
		regexp.MustCompile(`@Override\b`),
		regexp.MustCompile(`\bnew\s+\w+\s*\([^)]*\)\s*;`),
	}},
}

const fileNamePart = `[\w\-./]+\.[A-Za-z0-9]{1,6}`

// filePatterns capture a referenced file name in group 1.
var filePatterns = []*regexp.Regexp{
	regexp.MustCompile("[\"'`](" + fileNamePart + ")[\"'`]"),
	regexp.MustCompile(`@(` + fileNamePart + `)`),
	regexp.MustCompile(`(?i)\b(?:arquivo|file)\s+(` + fileNamePart + `)`),
}

// Insight labels.
const (
	InsightDiscovery  = "discovery"
	InsightConclusion = "conclusion"
	InsightExplicit   = "explicit-insight"
	InsightLearning   = "learning"
	InsightSolution   = "solution"
)

type insightPattern struct {
	label      string
	confidence float64
	re         *regexp.Regexp
}

const insightBody = `\s*:?\s*([^.!?\n]{10,200})`

// insightPatterns capture the insight sentence in group 1.
var insightPatterns = []insightPattern{
	{InsightDiscovery, 0.85, regexp.MustCompile(`(?i)\b(?:descobri(?:mos)?(?:\s+que)?|discovered(?:\s+that)?|found\s+that)` + insightBody)},
	{InsightConclusion, 0.9, regexp.MustCompile(`(?i)\b(?:conclus[ãa]o|conclu[íi]mos(?:\s+que)?|in\s+conclusion|concluded(?:\s+that)?)` + insightBody)},
	{InsightExplicit, 0.95, regexp.MustCompile(`(?i)\binsight\s*:\s*([^.!?\n]{10,200})`)},
	{InsightLearning, 0.8, regexp.MustCompile(`(?i)\b(?:aprendi(?:mos)?(?:\s+que)?|learned(?:\s+that)?|li[çc][ãa]o\s+aprendida|lesson\s+learned)` + insightBody)},
	{InsightSolution, 0.85, regexp.MustCompile(`(?i)\b(?:solu[çc][ãa]o|solution|resolvemos|solved\s+by)` + insightBody)},
}

// versionPatterns are tried in order; group 1 is the version token.
var versionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[_\-\s]v(\d+(?:\.\d+)*)(?:\.[A-Za-z][A-Za-z0-9]*)?$`),
	regexp.MustCompile(`(?i)[_\-\s]vers[ãa]o[_\-\s]?(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)[_\-\s]version[_\-\s]?(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`(?i)[_\-\s]rev(\d+)(?:\.[A-Za-z][A-Za-z0-9]*)?$`),
}
