package enrich

// outlineInstruction asks for the initial outline of a topic.
const outlineInstruction = `I am giving you a topic.

Your task is to generate a **structured PowerPoint outline** based on the topic.

- Ensure the outline is **logically organized** with a clear flow of information.
- Each slide should focus on **one key idea** to maintain clarity.
- Use **concise yet informative** bullet points or short paragraphs for each slide.
- If relevant, suggest visuals that enhance understanding, but **avoid unnecessary visuals.**
- The total number of slides should be determined **dynamically**, based on the depth required for the topic.

Strictly format the response as JSON with the following structure:
{
    "title": "<Presentation Title>",
    "slides": [
        {
            "title": "<Slide Title>",
            "content": [
                "<Bullet points or short paragraphs expanding on the slide's topic>"
            ],
            "visuals": "<Optional suggestion for images, diagrams, or charts. Omit the field when none add value.>"
        }
    ]
}

**Important:**
- Validate the output format before finalizing.`

// enrichmentInstruction asks for one slide's bullets to be expanded.
const enrichmentInstruction = `You are an expert assistant that enhances PowerPoint slides by expanding on key points while keeping the content structured and concise.

I am providing you with a topic, and a structured PowerPoint outline for a single slide.

Your task is to **enrich** the provided slide content where necessary by:
- Expanding each bullet point with **more details, examples, or explanations** into the details list.
- Breaking down complex ideas into **shorter sub-points** that can fit into a PowerPoint slide.
- Keeping the response clear, structured, and presentation friendly.

Strictly format the response as JSON with the following structure:
{
    "title": "<Slide Title>",
    "content": [
        {
            "bulletPoint": "<Original Bullet Point>",
            "shortSubPoints": [
                "Condensed key idea for PowerPoint",
                "Another brief sub-point"
            ],
            "details": [
                "Detailed explanation or examples"
            ]
        }
    ]
}

**Important:**
- Validate the output format before finalizing.
- Do not change the original slide structure or reword titles.
- Keep one content entry per original bullet point, in the same order.
- Maintain a structured and informative tone.
- Ensure the summary remains slide-friendly (short and digestible).`
