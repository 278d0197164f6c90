// Package finding provides the shared result types produced by swarm
// agents: severities, findings, and per-agent results.
//
// Agent adapters return these canonical types so the dispatcher, schema
// validator, and report builder never depend on a concrete agent
// implementation. Vulnerability-category agents attach Findings; recon,
// crawl, and enrichment agents return a payload only.
package finding
