package speech

const (
	greetingFmt      = "Hello everyone. Today, I will be presenting about %s."
	discussionPrefix = "Let's discuss"
	closingLine      = "Thank you for your attention. [PAUSE=1] If you have any questions, I'd be happy to address them now."
	transitionFmt    = "Moving on to our next topic: %s. %s %s"
)

const introductionInstruction = `You are creating the introduction for a TTS-friendly speech.

Generate an introduction that:
1. Starts with "Hello everyone. Today, I will be presenting about [TITLE]."
2. Briefly mentions the main sections you'll cover
3. Sets the tone for the presentation
4. Uses simple language suitable for text-to-speech systems
5. Includes [PAUSE=1] markers for 1-second pauses at natural breaking points

The introduction should be concise (3-5 sentences) and engaging.`

const sectionInstruction = `You are creating a section of a TTS-friendly speech.

Convert the slide content into natural, conversational speech that:
1. Explains the key points in a flowing, narrative style (not bullet points)
2. Uses simple sentence structures for text-to-speech systems
3. Includes [PAUSE=1] markers at natural breaking points
4. Does not use square brackets for anything other than pause markers

The speech should sound natural when read aloud by a TTS system.`

const conclusionInstruction = `You are creating the conclusion for a TTS-friendly speech.

Generate a conclusion that:
1. Summarizes the key points from the presentation
2. Provides a closing thought or call to action
3. Ends with exactly: "Thank you for your attention. [PAUSE=1] If you have any questions, I'd be happy to address them now."
4. Uses simple language suitable for text-to-speech systems
5. Includes [PAUSE=1] markers at natural breaking points

The conclusion should be concise (3-5 sentences) and provide closure to the presentation.`

const directInstruction = `You are an expert speech writer who creates TTS-optimized speech scripts.

Your task is to transform the provided presentation outline into a speech script specifically formatted for text-to-speech (TTS) systems.

STRICT FORMAT REQUIREMENTS (you must follow these exactly):

1. Start with the exact greeting: "Hello everyone. Today, I will be presenting about [TOPIC]. In this presentation, I will cover [LIST 3-5 KEY SECTIONS]."

2. For each section or slide, begin with: "Let's discuss [SECTION TITLE]." followed by the content in natural conversational language.

3. Between sections, add the transition: "Moving on to our next topic. [PAUSE=1] [SLIDE CHANGE]"

4. Include precise pause indicators: "[PAUSE=1]" for 1-second pauses, "[PAUSE=2]" for 2-second pauses.

5. End with exactly: "Thank you for your attention. [PAUSE=1] If you have any questions, I'd be happy to address them now. [PAUSE=2]"

IMPORTANT LANGUAGE GUIDELINES:
- Use simple, clear sentences that work well for TTS
- Avoid complex words or terms that might be mispronounced
- Break down complex concepts into shorter, digestible statements
- Use natural transitions between ideas
- Do not use square brackets for anything other than the markers above

The final output should read as a continuous speech that a TTS system could read without awkward phrasing or unclear structure.`

const introductionUserFmt = `Title: %s
Main sections: %s

Create an introduction for this presentation that starts with "Hello everyone. Today, I will be presenting about %s." Mention that you'll cover these main sections.`

const sectionUserFmt = `Slide Title: %s

Key Points:
%s

Convert this into a section of a speech with natural language. Use about 3-5 sentences. Do not start with "Let's discuss"; begin with a sentence that carries over naturally from the previous section.`

const conclusionUserFmt = `Title: %s
Main sections covered: %s

Create a brief conclusion that summarizes these key points.`
