package research

const defaultFeedback = "No feedback provided."

const noSourcesText = "No sources provided. Write the section from general knowledge."

const noResearchText = "No research materials available."

// reportPlannerQueryWriterInstructions: topic, report organization, query count.
const reportPlannerQueryWriterInstructions = `You are an expert technical writer helping to plan a report.

<Report topic>
%s
</Report topic>

<Report organization>
%s
</Report organization>

<Task>
Generate %d search queries that will help gather comprehensive information for planning the report sections.

The queries should:
1. Be related to the topic of the report
2. Help satisfy the requirements specified in the report organization

Make the queries specific enough to find high-quality, relevant sources while covering the breadth needed for the report structure.
</Task>

<Format>
Respond with a JSON object of the form {"queries": [{"search_query": "..."}]}.
</Format>`

// reportPlannerInstructions: topic, report organization, search context, feedback.
const reportPlannerInstructions = `I want a plan for a report that is concise and focused.

<Report topic>
%s
</Report topic>

<Report organization>
%s
</Report organization>

<Context>
Here is context to use to plan the sections of the report:
%s
</Context>

<Task>
Generate a list of sections for the report. Each section should have the fields:

- name: Name for this section of the report.
- description: Brief overview of the main topics covered in this section.
- research: Whether web research is needed for this section of the report.
- content: The content of the section, which you will leave blank for now.

Integration guidelines:
- Include examples and implementation details within main topic sections, not as separate sections
- Ensure each section has a distinct purpose with no content overlap
- Combine related concepts rather than separating them

Before submitting, review your structure to ensure it has no redundant sections and follows a logical flow.
</Task>

<Feedback>
Here is feedback on the report structure from review (if any):
%s
</Feedback>

<Format>
Respond with a JSON object of the form {"sections": [{"name": "...", "description": "...", "research": true, "content": ""}]}.
</Format>`

const planQueriesRequest = "Generate search queries that will help with planning the sections of the report."

const planSectionsRequest = `Generate the sections of the report. Your response must include a "sections" field containing a list of sections. Each section must have: name, description, research, and content fields.`

// queryWriterInstructions: topic, section name, section description, query count.
const queryWriterInstructions = `You are an expert technical writer crafting targeted web search queries that will gather comprehensive information for writing a technical report section.

<Report topic>
%s
</Report topic>

<Section name>
%s
</Section name>

<Section topic>
%s
</Section topic>

<Task>
Your goal is to generate %d search queries that will help gather comprehensive information about the section topic.

The queries should:
1. Be related to the topic
2. Examine different aspects of the topic

Make the queries specific enough to find high-quality, relevant sources.
</Task>

<Format>
Respond with a JSON object of the form {"queries": [{"search_query": "..."}]}.
</Format>`

// sectionQueriesRequest: source text gathered so far.
const sectionQueriesRequest = `Generate search queries on the provided topic.

Sources gathered so far:
%s`

// sectionWriterInstructions: topic, section name, section description.
const sectionWriterInstructions = `Write one section of a research report.

<Report topic>
%s
</Report topic>

<Section name>
%s
</Section name>

<Section topic>
%s
</Section topic>

<Task>
1. Review the report topic, section name, and section topic carefully.
2. Use the provided sources to write the section in Markdown.
3. Cite the sources you rely on with their URLs at the end of the section.
</Task>

<Writing guidelines>
- Strictly 150-200 words
- Use simple, clear language
- Use short paragraphs (2-3 sentences max)
- Do not repeat the section name as a heading
</Writing guidelines>`

// sectionWriterRequest: section name, sources.
const sectionWriterRequest = `Write the "%s" section based on the sources provided below. Include a JSON field named "content" with your response.

Sources:
%s`

// finalSectionWriterInstructions: topic, section name, section description, research context.
const finalSectionWriterInstructions = `You are an expert technical writer crafting a section that synthesizes information from the rest of the report.

<Report topic>
%s
</Report topic>

<Section name>
%s
</Section name>

<Section topic>
%s
</Section topic>

<Available report content>
%s
</Available report content>

<Task>
1. Section-specific approach:

For Introduction:
- 50-100 word limit
- Write in simple and clear language
- Focus on the core motivation for the report in 1-2 paragraphs
- No structural elements (no lists or tables)
- No sources section needed

For Conclusion/Summary:
- 100-150 word limit
- For comparative reports, include one focused comparison table
- For non-comparative reports, only use one structural element if it helps distill the points made in the report
- No sources section needed

2. Writing approach:
- Use concrete details over general statements
- Make every word count
- Focus on your single most important point
</Task>

<Format>
Respond with a JSON object of the form {"content": "..."} where content is Markdown.
</Format>`

const finalSectionRequest = "Generate a report section based on the provided sources."
