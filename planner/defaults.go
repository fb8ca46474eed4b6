package planner

import "github.com/c360studio/docuplan/plan"

// defaultSkeleton is the fallback outline used when the structure phase
// exhausts its format retries without producing parseable JSON. It gives
// the pipeline something to retrieve and write against rather than failing
// the whole run over one malformed response.
func defaultSkeleton(request string) *plan.Plan {
	return &plan.Plan{
		Title: "Untitled Document",
		Goal:  request,
		Parts: []*plan.Part{
			{
				ID:      "part-1",
				Heading: "Overview",
				Leaves: []*plan.Leaf{
					{ID: "part-1-leaf-1", Heading: "Introduction"},
					{ID: "part-1-leaf-2", Heading: "Summary"},
				},
			},
		},
	}
}
