package mcpserver

// HeadingRules documents heading inference for LLM consumers.
const HeadingRules = `# Heading Inference Rules

Explicit h1-h5 elements keep their level. h6 is treated as a paragraph.

A p element becomes a heading from its own inline style, or the style of
its first span:

| Signal | Level |
|---|---|
| font-size >= 24pt | 1 |
| font-size >= 18pt | 2 |
| font-size >= 14pt and bold | 3 |
| no font-size, bold, all caps, 4-99 characters | 3 |

Sizes in px convert at 0.75pt per px. A paragraph with a font size below
these thresholds stays a paragraph even when it is bold and all caps.

All-caps detection uses the case rules of the requested language, so
"İSTANBUL" is all caps in Turkish.
`
