package badges

// Apply применяет одну describe-оценку к набору и возвращает новый набор.
//
// Для каждого присланного бейджа:
//
//	new_avg = (old_avg × count + value) / (count + 1)
//
// где count — общий счётчик describe-оценок до этой. Счётчик растёт на 1
// за оценку, а не за бейдж. Бейджи, которых нет в scores, не меняются.
func Apply(set *Set, scores Scores) *Set {
	next := set.Clone()
	n := float64(set.Count)
	for k, v := range scores {
		next.Averages[k] = (set.Averages[k]*n + v) / (n + 1)
	}
	next.Count = set.Count + 1
	return next
}
