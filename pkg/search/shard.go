package search

// Shard returns the indices of n work items assigned to one of threads
// workers: thread, thread+threads, thread+2*threads and so on.
func Shard(n, threads, thread int) []int {
	if threads < 1 || thread < 0 || thread >= threads {
		return nil
	}
	out := make([]int, 0, (n-thread+threads-1)/threads)
	for i := thread; i < n; i += threads {
		out = append(out, i)
	}
	return out
}
