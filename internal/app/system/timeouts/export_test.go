package timeouts

// reset restores the default budgets.
func reset() {
	mu.Lock()
	defer mu.Unlock()
	cur = defaults
}
