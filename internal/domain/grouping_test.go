package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = Coordinates{Lat: -19.7472, Lng: -47.9381}

// metersPerDegreeLat is the length of one degree along a meridian on the
// haversine sphere.
const metersPerDegreeLat = EarthRadiusMeters * 3.141592653589793 / 180

// north returns the point the given distance due north of c.
func north(c Coordinates, meters float64) Coordinates {
	return Coordinates{Lat: c.Lat + meters/metersPerDegreeLat, Lng: c.Lng}
}

func problemAt(id string, status Status, c Coordinates) ReportedProblem {
	return ReportedProblem{
		ID:       id,
		Status:   status,
		Location: []CoordinateForm{{Kind: CoordinateObject, Coordinates: c}},
	}
}

func memberIDs(g ProblemGroup) []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

func TestGroupProblems_EmptyInput(t *testing.T) {
	groups := GroupProblems(nil, DefaultProximityMeters)
	assert.Empty(t, groups)
	assert.NotNil(t, groups)
}

func TestGroupProblems_NearbyPendingMerge(t *testing.T) {
	problems := []ReportedProblem{
		problemAt("P1", StatusPending, Coordinates{Lat: -19.7472, Lng: -47.9381}),
		problemAt("P2", StatusPending, Coordinates{Lat: -19.74721, Lng: -47.93811}),
		problemAt("P3", StatusPending, Coordinates{Lat: -19.8, Lng: -48.0}),
	}

	groups := GroupProblems(problems, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"P1", "P2"}, memberIDs(groups[0]))
	assert.Equal(t, []string{"P3"}, memberIDs(groups[1]))
	assert.Equal(t, StatusPending, groups[0].Status)
	assert.Equal(t, Coordinates{Lat: -19.7472, Lng: -47.9381}, groups[0].Seed)
}

func TestGroupProblems_SameSpotDifferentStatus(t *testing.T) {
	problems := []ReportedProblem{
		problemAt("P1", "Pendente", testOrigin),
		problemAt("P2", "em andamento", testOrigin),
	}

	groups := GroupProblems(problems, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, StatusPending, groups[0].Status)
	assert.Equal(t, StatusInProgress, groups[1].Status)
	assert.Equal(t, []string{"P1"}, memberIDs(groups[0]))
	assert.Equal(t, []string{"P2"}, memberIDs(groups[1]))
}

func TestGroupProblems_SeedNeverRecenters(t *testing.T) {
	p2 := north(testOrigin, 9)
	p3 := north(testOrigin, 18)
	require.Less(t, Distance(p2, p3), 10.0)

	problems := []ReportedProblem{
		problemAt("P1", StatusPending, testOrigin),
		problemAt("P2", StatusPending, p2),
		problemAt("P3", StatusPending, p3),
	}

	groups := GroupProblems(problems, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"P1", "P2"}, memberIDs(groups[0]))
	assert.Equal(t, testOrigin, groups[0].Seed)
	assert.Equal(t, []string{"P3"}, memberIDs(groups[1]))
}

func TestGroupProblems_FirstMatchNotNearest(t *testing.T) {
	a := testOrigin
	b := north(testOrigin, 15) // too far to join a, seeds its own group
	p := north(testOrigin, 8)  // 8 m from a, 7 m from b

	require.Less(t, Distance(p, b), Distance(p, a))

	groups := GroupProblems([]ReportedProblem{
		problemAt("A", StatusResolved, a),
		problemAt("B", StatusResolved, b),
		problemAt("P", StatusResolved, p),
	}, 10)

	require.Len(t, groups, 2)
	assert.Equal(t, []string{"A", "P"}, memberIDs(groups[0]))
	assert.Equal(t, []string{"B"}, memberIDs(groups[1]))
}

func TestGroupProblems_ThresholdIsStrict(t *testing.T) {
	far := north(testOrigin, 10.5)
	groups := GroupProblems([]ReportedProblem{
		problemAt("P1", StatusPending, testOrigin),
		problemAt("P2", StatusPending, far),
	}, 10)
	assert.Len(t, groups, 2)

	groups = GroupProblems([]ReportedProblem{
		problemAt("P1", StatusPending, testOrigin),
		problemAt("P2", StatusPending, testOrigin),
	}, 10)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Members, 2)
}

func TestGroupProblems_InvalidCoordinatesExcluded(t *testing.T) {
	problems := []ReportedProblem{
		problemAt("ok", StatusPending, testOrigin),
		problemAt("lat200", StatusPending, Coordinates{Lat: 200, Lng: -47.9}),
		problemAt("lng-181", StatusPending, Coordinates{Lat: -19.7, Lng: -181}),
		{ID: "none", Status: StatusPending},
	}

	groups := GroupProblems(problems, 10)

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"ok"}, memberIDs(groups[0]))
}

func TestGroupProblems_DefaultThresholdFallback(t *testing.T) {
	problems := []ReportedProblem{
		problemAt("P1", StatusPending, testOrigin),
		problemAt("P2", StatusPending, north(testOrigin, 5)),
	}

	for _, threshold := range []float64{0, -3} {
		groups := GroupProblems(problems, threshold)
		assert.Len(t, groups, 1, "threshold %v should fall back to default", threshold)
	}
}

func TestGroupProblems_Idempotent(t *testing.T) {
	problems := []ReportedProblem{
		problemAt("P1", StatusPending, testOrigin),
		problemAt("P2", StatusResolved, north(testOrigin, 3)),
		problemAt("P3", StatusPending, north(testOrigin, 4)),
		problemAt("P4", StatusPending, north(testOrigin, 40)),
		problemAt("P5", StatusInProgress, north(testOrigin, 41)),
	}

	first := GroupProblems(problems, 10)
	second := GroupProblems(problems, 10)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("grouping not idempotent (-first +second):\n%s", diff)
	}
}

func TestGroupProblems_Invariants(t *testing.T) {
	var problems []ReportedProblem
	statuses := []Status{StatusPending, StatusInProgress, StatusResolved, "bogus"}
	for i := 0; i < 60; i++ {
		problems = append(problems, problemAt(
			string(rune('a'+i%26))+string(rune('0'+i/26)),
			statuses[i%len(statuses)],
			north(testOrigin, float64(i%17)*3.5),
		))
	}

	const threshold = 10.0
	groups := GroupProblems(problems, threshold)

	total := 0
	for _, g := range groups {
		require.NotEmpty(t, g.Members)
		first, ok := g.Members[0].Coordinates()
		require.True(t, ok)
		assert.Equal(t, g.Seed, first, "seed must be the first member")

		for i, m := range g.Members {
			assert.Equal(t, g.Status, NormalizeStatus(string(m.Status)), "group mixes statuses")
			if i == 0 {
				continue
			}
			point, ok := m.Coordinates()
			require.True(t, ok)
			assert.Less(t, Distance(point, g.Seed), threshold)
		}
		total += len(g.Members)
	}
	assert.Equal(t, len(problems), total)
}

func TestGroupProblems_CoordinateShapesGroupTogether(t *testing.T) {
	records := []string{
		`{"id":"obj","status":"pending","coordinates":{"latitude":-19.7472,"longitude":-47.9381}}`,
		`{"id":"flat","status":"pending","latitude":-19.7472,"longitude":-47.9381}`,
		`{"id":"pair","status":"pending","coordinates":[-19.7472,-47.9381]}`,
	}

	var problems []ReportedProblem
	for _, rec := range records {
		change, err := ParseRawEvent(RawEvent{Value: []byte(rec)})
		require.NoError(t, err)
		problems = append(problems, NormalizeProblem(change.Problem))
	}

	for _, p := range problems {
		point, ok := p.Coordinates()
		require.True(t, ok, p.ID)
		assert.Equal(t, testOrigin, point, p.ID)
	}

	groups := GroupProblems(problems, DefaultProximityMeters)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"obj", "flat", "pair"}, memberIDs(groups[0]))
}

func TestGroupProblems_ParsedRecordsWithoutNormalizing(t *testing.T) {
	records := []string{
		`{"id":"a","status":"em andamento","coordinates":[-19.7472,-47.9381]}`,
		`{"id":"b","status":"resolvido","coordinates":[-19.7472,-47.9381]}`,
		`{"id":"c","status":"EM ANDAMENTO","coordinates":[-19.7472,-47.9381]}`,
	}

	var problems []ReportedProblem
	for _, rec := range records {
		change, err := ParseRawEvent(RawEvent{Value: []byte(rec)})
		require.NoError(t, err)
		require.Empty(t, change.Problem.Status)
		problems = append(problems, change.Problem)
	}

	groups := GroupProblems(problems, DefaultProximityMeters)

	require.Len(t, groups, 2)
	assert.Equal(t, StatusInProgress, groups[0].Status)
	assert.Equal(t, []string{"a", "c"}, memberIDs(groups[0]))
	assert.Equal(t, StatusResolved, groups[1].Status)
	assert.Equal(t, []string{"b"}, memberIDs(groups[1]))
}
