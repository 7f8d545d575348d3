package combat

import "math/rand/v2"

// Pair é um confronto 1:1 dentro de um turno (ordem irrelevante).
type Pair struct {
	A string
	B string
}

// PairKey gera a chave não ordenada usada para detectar revanches imediatas.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// PairKeys devolve o conjunto de chaves de um turno, usado como "prev" no próximo.
func PairKeys(pairs []Pair) map[string]struct{} {
	out := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		out[PairKey(p.A, p.B)] = struct{}{}
	}
	return out
}

// MakePairings embaralha os lutadores vivos e os pareia em sequência.
// Com quantidade ímpar sobra um "bye". Quando um par repete o turno anterior,
// tenta uma única troca com o segundo membro do par seguinte (circular) e só
// mantém a troca se ela não criar outra repetição. É best-effort: com um único
// par não há como evitar a revanche.
func MakePairings(ids []string, prev map[string]struct{}, rng *rand.Rand) ([]Pair, string) {
	if len(ids) == 0 {
		return nil, ""
	}
	shuffled := make([]string, len(ids))
	copy(shuffled, ids)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	var bye string
	if len(shuffled)%2 == 1 {
		bye = shuffled[len(shuffled)-1]
		shuffled = shuffled[:len(shuffled)-1]
	}

	pairs := make([]Pair, 0, len(shuffled)/2)
	for i := 0; i+1 < len(shuffled); i += 2 {
		pairs = append(pairs, Pair{A: shuffled[i], B: shuffled[i+1]})
	}

	repeated := func(p Pair) bool {
		_, ok := prev[PairKey(p.A, p.B)]
		return ok
	}

	for i := range pairs {
		if !repeated(pairs[i]) {
			continue
		}
		if len(pairs) == 1 {
			if bye == "" {
				continue
			}
			old := pairs[i].B
			pairs[i].B = bye
			if repeated(pairs[i]) {
				pairs[i].B = old
				continue
			}
			bye = old
			continue
		}
		j := (i + 1) % len(pairs)
		pairs[i].B, pairs[j].B = pairs[j].B, pairs[i].B
		if repeated(pairs[i]) || repeated(pairs[j]) {
			pairs[i].B, pairs[j].B = pairs[j].B, pairs[i].B
		}
	}

	return pairs, bye
}
