package memory

import "testing"

func TestHashVectorizer_Deterministic(t *testing.T) {
	v := NewHashVectorizer(100)

	a := v.Vectorize("Deploy the server, deploy it now")
	b := v.Vectorize("deploy the server deploy it NOW")
	if len(a) != 100 {
		t.Fatalf("vector length = %d, want 100", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tokenization should ignore case and punctuation, vectors differ at %d", i)
		}
	}

	var total float64
	for _, x := range a {
		total += x
	}
	if total != 6 {
		t.Errorf("total word count = %v, want 6", total)
	}
}

func TestCosine(t *testing.T) {
	if got := cosine([]float64{1, 0}, []float64{1, 0}); got != 1 {
		t.Errorf("identical vectors = %v, want 1", got)
	}
	if got := cosine([]float64{1, 0}, []float64{0, 1}); got != 0 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := cosine([]float64{0, 0}, []float64{1, 1}); got != 0 {
		t.Errorf("zero vector = %v, want 0", got)
	}
}
