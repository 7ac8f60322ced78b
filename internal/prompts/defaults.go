package prompts

// Fallback prompt bodies used when the prompt table has no row for a key.
// These keep the pipeline operable against an empty CMS.
var defaultBodies = map[string]string{
	KeyNewsFetch: `You are the news desk for Tidende, a Danish news site covering
property, investment and business. Search the web for the most significant
Danish news stories from the last 24 hours in those areas.

Return ONLY a JSON object, no surrounding prose, in this exact shape:

{
  "newsItems": [
    {
      "title": "short headline in Danish",
      "summary": "2-3 sentence summary in Danish",
      "sources": ["https://..."],
      "date": "publication date as free text"
    }
  ]
}

Include at most 5 items. Every item must have at least one source URL. Do not
invent stories or sources.`,

	KeyArticleResearch: `Research the following news story for a Danish news
article. Use web search to verify facts and gather additional background,
figures and quotes.

Title: {{title}}
Summary: {{summary}}
Reported date: {{date}}
Candidate sources:
{{sources}}

Write detailed research findings in Danish: verified facts, relevant numbers,
context and any differing accounts between sources. Plain text only.`,

	KeyArticleWriting: `Write a complete news article in Danish based on the
research below.

Title: {{title}}
Summary: {{summary}}

Research findings:
{{researchFindings}}

Rules:
- Markdown body only. Do NOT include a top-level heading; the title is
  rendered separately.
- Use at most 2-3 second-level (##) headings.
- No concluding meta-commentary, no source list and no citations in the body.
- Neutral journalistic tone, 400-700 words.`,

	KeyArticleMetadata: `Extract metadata for the article below. Return ONLY a
JSON object in this exact shape, no surrounding prose:

{
  "slug": "url-safe-lowercase-slug",
  "metaDescription": "max 160 characters, in Danish",
  "summary": "2-3 sentence summary in Danish",
  "categories": "comma-separated category names from: Investering, Bolig, Erhverv, Økonomi, Nyheder"
}

Article:
{{articleContent}}`,

	KeyImageGeneration: `Editorial photo illustration for a Danish news article
titled "{{title}}". Realistic, neutral press-photo style, no text, no
watermarks, no recognizable private individuals.`,
}
