package match

import "slices"

// Grouping merges students connected by teammate requests, in either
// direction, into groups. Groups are ordered by their lowest member index
// and members are sorted. groupOf maps a student index to its group.
func Grouping(students []Student) (groups []Group, groupOf []int, err error) {
	idx := make(map[string]int, len(students))
	for i, s := range students {
		idx[s.Name] = i
	}

	n := len(students)
	uf := make([]int, n)
	size := make([]int, n)
	for i := range uf {
		uf[i] = i
		size[i] = 1
	}
	var ufFind func(int) int
	ufFind = func(x int) int {
		if uf[x] != x {
			uf[x] = ufFind(uf[x])
		}
		return uf[x]
	}
	for i, s := range students {
		for _, name := range s.Teammates {
			j, ok := idx[name]
			if !ok {
				return nil, nil, &InvalidReferenceError{Kind: "teammate", Owner: s.Name, Name: name}
			}
			ra, rb := ufFind(i), ufFind(j)
			if ra == rb {
				continue
			}
			if size[ra] < size[rb] {
				ra, rb = rb, ra
			}
			uf[rb] = ra
			size[ra] += size[rb]
		}
	}

	groupOf = make([]int, n)
	byRoot := map[int]int{}
	for i := range n {
		root := ufFind(i)
		g, ok := byRoot[root]
		if !ok {
			g = len(groups)
			byRoot[root] = g
			groups = append(groups, Group{ID: g, Skills: map[string]float64{}, Forced: -1})
		}
		groups[g].Members = append(groups[g].Members, i)
		groupOf[i] = g
	}
	for g := range groups {
		grp := &groups[g]
		slices.Sort(grp.Members)
		grp.Size = len(grp.Members)
		for _, m := range grp.Members {
			for k, v := range students[m].Skills {
				grp.Skills[k] += v
			}
		}
	}
	return groups, groupOf, nil
}
