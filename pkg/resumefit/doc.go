// Package resumefit tailors Microsoft Word resumes (DOCX) to a job posting.
//
// A document goes through three stages. Extraction turns the container into a
// payload for an external text rewriter (typically a language model). The
// rewriter returns rewritten text. Reconstruction produces a new container
// that keeps the original formatting. The input is never modified.
//
// # Quick Start
//
//	cfg, err := resumefit.LoadConfig("resumefit.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	rw, err := resumefit.NewGeminiRewriter(ctx, cfg, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pipe, err := resumefit.New(cfg, rw)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := pipe.Optimize(ctx, resumefit.Input{
//	    Document:    data,
//	    Role:        "Backend Engineer",
//	    Description: posting,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.WriteFile(res.Filename, res.Document, 0644)
//
// # Modes
//
// Two reconstruction strategies are available:
//
//   - patch (default): every text leaf of word/document.xml gets a stable
//     address such as /w:document[1]/w:body[1]/w:p[2]/w:r[1]/w:t[1]. The
//     rewriter returns replacement text per address and the replacements are
//     spliced into the original bytes. Every other byte of the container is
//     preserved.
//   - tree: the document is read into a closed tree of paragraph, run,
//     hyperlink, image, table_grid, row and cell nodes with explicit style
//     attributes. The rewriter edits run text in the serialized tree and a
//     fresh document is built from it. Images travel in a side table keyed
//     by relationship id.
//
// # Rewriter Contract
//
// Patch mode expects one JSON object:
//
//	{
//	  "optimized_texts_with_xpaths": [{"xpath": "...", "optimized_text": "..."}],
//	  "analysis": {"strong_points": "...", "weak_points": "...", "changes_made": "..."}
//	}
//
// Tree mode expects a JSON analysis block and the markup block, each wrapped
// in sentinel lines. A response that breaks the contract fails the run with
// ErrInvalidResponse and the raw payload is kept for diagnostics.
//
// # Surfaces
//
// Pipeline.RegisterHTTP mounts the HTTP API on a chi router and
// Pipeline.RegisterMCP exposes the same operations as MCP tools. The runlog
// sub-package records every state transition to SQLite.
package resumefit
