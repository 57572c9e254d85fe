package rating

// Aggregate — средняя и число действующих оценок цели.
// При Count == 0 средняя равна 0.
type Aggregate struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Compute считает среднюю полным проходом по значениям.
func Compute(values []float64) Aggregate {
	if len(values) == 0 {
		return Aggregate{}
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return Aggregate{Average: clamp(sum / float64(len(values))), Count: len(values)}
}

// Add учитывает новую оценку (первую от этого оценщика).
func (a Aggregate) Add(value float64) Aggregate {
	n := float64(a.Count)
	return Aggregate{Average: clamp((a.Average*n + value) / (n + 1)), Count: a.Count + 1}
}

// Replace заменяет старое значение оценщика новым; Count не меняется.
func (a Aggregate) Replace(oldValue, newValue float64) Aggregate {
	if a.Count == 0 {
		return a.Add(newValue)
	}
	return Aggregate{Average: clamp(a.Average + (newValue-oldValue)/float64(a.Count)), Count: a.Count}
}

// Remove убирает оценку из агрегата.
func (a Aggregate) Remove(value float64) Aggregate {
	if a.Count <= 1 {
		return Aggregate{}
	}
	n := float64(a.Count)
	return Aggregate{Average: clamp((a.Average*n - value) / (n - 1)), Count: a.Count - 1}
}

// clamp срезает погрешность плавающей точки за границами шкалы.
func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > MaxScore:
		return MaxScore
	}
	return v
}
