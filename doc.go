// Package consolidator is an in-process client for the knowledge consolidator:
// triple extraction, a semantic triple store, convergence analysis and
// iterative refinement of document analyses.
//
//	client, _ := consolidator.New(consolidator.WithEmbedder(myEmbedder))
//	defer client.Close()
//
//	client.PutDocument(ctx, &consolidator.Document{Name: "notes.md", Content: "..."})
//	res, _ := client.AnalyzeConvergence(ctx, nil, consolidator.ConvergenceOptions{})
//
// Documents put through the client are extracted in the background and, when
// automatic refinement is enabled, refined until their analysis converges.
// Lifecycle events are available through Subscribe.
package consolidator
