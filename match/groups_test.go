package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGrouping(t *testing.T) {
	tests := []struct {
		name     string
		students []Student
		want     [][]int
	}{
		{
			name:     "singletons",
			students: []Student{{Name: "a"}, {Name: "b"}},
			want:     [][]int{{0}, {1}},
		},
		{
			name: "one-directional request",
			students: []Student{
				{Name: "a"},
				{Name: "b", Teammates: []string{"a"}},
				{Name: "c"},
			},
			want: [][]int{{0, 1}, {2}},
		},
		{
			name: "transitive chain",
			students: []Student{
				{Name: "a", Teammates: []string{"b"}},
				{Name: "b"},
				{Name: "c"},
				{Name: "d", Teammates: []string{"c", "b"}},
			},
			want: [][]int{{0, 1, 2, 3}},
		},
		{
			name: "mutual and self requests",
			students: []Student{
				{Name: "a", Teammates: []string{"a"}},
				{Name: "b", Teammates: []string{"c"}},
				{Name: "c", Teammates: []string{"b"}},
			},
			want: [][]int{{0}, {1, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, groupOf, err := Grouping(tt.students)
			require.NoError(t, err)
			require.Len(t, groups, len(tt.want))
			for g, members := range tt.want {
				assert.Equal(t, members, groups[g].Members)
				assert.Equal(t, len(members), groups[g].Size)
				assert.Equal(t, -1, groups[g].Forced)
				for _, m := range members {
					assert.Equal(t, g, groupOf[m])
				}
			}
		})
	}
}

func TestGrouping_SumsSkills(t *testing.T) {
	groups, _, err := Grouping([]Student{
		{Name: "a", Skills: map[string]float64{"cad": 1, "code": 0.5}},
		{Name: "b", Skills: map[string]float64{"code": 2}, Teammates: []string{"a"}},
	})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, map[string]float64{"cad": 1, "code": 2.5}, groups[0].Skills)
}

func TestGrouping_UnknownTeammate(t *testing.T) {
	_, _, err := Grouping([]Student{{Name: "a", Teammates: []string{"zed"}}})
	var ref *InvalidReferenceError
	require.ErrorAs(t, err, &ref)
	assert.Equal(t, InvalidReferenceError{Kind: "teammate", Owner: "a", Name: "zed"}, *ref)
	assert.EqualError(t, err, `student "a" lists teammate "zed", which is not a known student`)
}
