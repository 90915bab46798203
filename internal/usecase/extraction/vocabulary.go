package extraction

import (
	"regexp"
	"slices"
	"strings"
)

// Keyword categories.
const (
	KeywordTecnico    = "tecnico"
	KeywordConceitual = "conceitual"
	KeywordDecisivo   = "decisivo"
	KeywordInsight    = "insight"
	KeywordAcao       = "acao"
)

// KeywordCategories lists the categories in scan order.
var KeywordCategories = []string{KeywordTecnico, KeywordConceitual, KeywordDecisivo, KeywordInsight, KeywordAcao}

// vocabulary maps keyword -> weight per category. PT and EN forms side by side.
var vocabulary = map[string]map[string]float64{
	KeywordTecnico: {
		"código": 2, "code": 2, "api": 2, "algoritmo": 3, "algorithm": 3,
		"implementação": 2, "implementation": 2, "arquitetura": 3, "architecture": 3,
		"banco de dados": 2, "database": 2, "framework": 2, "deploy": 2,
		"performance": 2, "bug": 1, "servidor": 1, "server": 1, "função": 1, "function": 1,
	},
	KeywordConceitual: {
		"conceito": 2, "concept": 2, "teoria": 3, "theory": 3, "modelo": 1, "model": 1,
		"paradigma": 3, "paradigm": 3, "princípio": 2, "principle": 2,
		"abstração": 2, "abstraction": 2, "hipótese": 2, "hypothesis": 2,
	},
	KeywordDecisivo: {
		"decisão": 3, "decision": 3, "decidimos": 3, "decided": 3, "escolha": 2, "choice": 2,
		"definido": 1, "aprovado": 2, "approved": 2, "trade-off": 2,
		"prioridade": 2, "priority": 2, "estratégia": 2, "strategy": 2,
	},
	KeywordInsight: {
		"insight": 3, "descoberta": 3, "discovery": 3, "percebi": 2, "realized": 2,
		"aprendizado": 2, "learning": 2, "padrão": 1, "pattern": 1,
		"revelou": 2, "revealed": 2, "entendimento": 2, "understanding": 2,
	},
	KeywordAcao: {
		"ação": 2, "action": 2, "tarefa": 2, "task": 2, "todo": 1,
		"próximos passos": 3, "next steps": 3, "implementar": 2, "implement": 2,
		"prazo": 2, "deadline": 2, "revisar": 1, "review": 1, "migrar": 2, "migrate": 2,
	},
}

type keywordMatcher struct {
	keyword string
	weight  float64
	re      *regexp.Regexp
}

// \b в RE2 только ASCII, поэтому границы слова задаём через \p{L}.
var keywordMatchers = buildKeywordMatchers()

func buildKeywordMatchers() map[string][]keywordMatcher {
	out := make(map[string][]keywordMatcher, len(vocabulary))
	for category, words := range vocabulary {
		list := make([]keywordMatcher, 0, len(words))
		for kw, w := range words {
			list = append(list, keywordMatcher{
				keyword: kw,
				weight:  w,
				re:      regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(kw) + `(?:$|[^\p{L}\p{N}_])`),
			})
		}
		slices.SortFunc(list, func(a, b keywordMatcher) int { return strings.Compare(a.keyword, b.keyword) })
		out[category] = list
	}
	return out
}

// analysisTypeCategories maps known analysis-type labels to category names.
var analysisTypeCategories = map[string]string{
	"Breakthrough Técnico": "Técnico",
	"Evolução Conceitual":  "Conceitual",
	"Momento Decisivo":     "Decisivo",
	"Insight Estratégico":  "Insight",
	"Aprendizado Geral":    "Aprendizado",
}

// SuggestedCategoryFor returns the category suggested for an analysis type label.
func SuggestedCategoryFor(analysisType string) (string, bool) {
	c, ok := analysisTypeCategories[analysisType]
	return c, ok
}
