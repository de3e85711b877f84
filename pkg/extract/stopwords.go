package extract

// stopwords is a curated Portuguese (PT-BR) functional-word list: articles,
// prepositions, pronouns, common adverbs, and auxiliary verbs. A few
// high-frequency content words ("coisa", "vez", "dia") are included too —
// they read as noise far more often than as concepts worth tracking.
var stopwords = map[string]bool{
	"o": true, "a": true, "os": true, "as": true, "um": true, "uma": true,
	"uns": true, "umas": true, "de": true, "do": true, "da": true, "dos": true,
	"das": true, "em": true, "no": true, "na": true, "nos": true, "nas": true,
	"por": true, "pelo": true, "pela": true, "pelos": true, "pelas": true,
	"para": true, "com": true, "sem": true, "sob": true, "sobre": true,
	"entre": true, "que": true, "se": true, "não": true, "sim": true,
	"mas": true, "ou": true, "e": true, "é": true, "são": true, "foi": true,
	"era": true, "ser": true, "ter": true, "há": true, "está": true,
	"eu": true, "ele": true, "ela": true, "nós": true, "eles": true,
	"elas": true, "me": true, "te": true, "lhe": true, "isso": true,
	"isto": true, "esse": true, "esta": true, "essa": true, "aquele": true,
	"aquela": true, "meu": true, "minha": true, "seu": true, "sua": true,
	"nosso": true, "nossa": true, "muito": true, "mais": true, "menos": true,
	"bem": true, "mal": true, "já": true, "ainda": true, "também": true,
	"então": true, "quando": true, "como": true, "onde": true, "porque": true,
	"porquê": true, "depois": true, "antes": true, "agora": true,
	"sempre": true, "nunca": true, "todo": true, "toda": true, "cada": true,
	"outro": true, "outra": true, "mesmo": true, "mesma": true,
	"próprio": true, "própria": true, "ao": true, "à": true, "aos": true,
	"às": true, "num": true, "numa": true, "dum": true, "duma": true,
	"qual": true, "quais": true, "quem": true, "até": true, "pode": true,
	"vai": true, "vou": true, "tem": true, "tinha": true, "acho": true,
	"aqui": true, "ali": true, "lá": true, "cá": true, "faz": true,
	"coisa": true, "vez": true, "vezes": true, "dia": true, "dias": true,
}

// isStopword reports whether word (already lowercased) is a functional
// word that should never stand alone as a concept candidate.
func isStopword(word string) bool {
	return stopwords[word]
}

// IsStopword exports isStopword for pkg/ingest's fragment-merging
// heuristic, which needs the same functional-word list to decide whether a
// short broken-PDF token is noise or a genuine fragment to rejoin.
func IsStopword(word string) bool {
	return isStopword(word)
}

// LooksLikeVerb exports looksLikeVerb for the same reason as IsStopword.
func LooksLikeVerb(word string) bool {
	return looksLikeVerb(word)
}

// verbSuffixes are common Portuguese gerund/participle endings used by
// looksLikeVerb to filter out conjugated forms that slipped past the
// stopword list.
var verbSuffixes = []string{"ando", "endo", "indo", "ado", "ido"}

// looksLikeVerb is a cheap heuristic, not a real morphological analyser: it
// accepts the occasional false positive ("conteúdo" ends in "do") in
// exchange for not needing a PT-BR verb conjugation table.
func looksLikeVerb(word string) bool {
	for _, suf := range verbSuffixes {
		if len(word) > len(suf) && word[len(word)-len(suf):] == suf {
			return true
		}
	}
	return false
}
