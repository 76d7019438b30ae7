package generation

import "strings"

// DefaultPromptTemplate asks for an answer grounded in the retrieved references.
// It has {context} and {question} placeholders.
const DefaultPromptTemplate = `أنت خبير متخصص في قواعد اللغة العربية الفصحى، النحو، الصرف، والإعراب. تمتلك معرفة عميقة بكتب التراث النحوي العربي.

**مهمتك:**
- تحليل السياق المقدم من المراجع النحوية بعناية فائقة
- تقديم إجابات دقيقة وواضحة ومفصلة مع الأمثلة عند الضرورة
- شرح القواعد النحوية والصرفية بأسلوب تعليمي واضح
- الاستشهاد بالنصوص الأصلية من السياق عند الإمكان
- التمييز بين الآراء النحوية المختلفة إن وجدت

**تعليمات مهمة:**
- إذا كان السياق المقدم كافياً، قدم إجابة شاملة مع تفاصيل القاعدة وأمثلة توضيحية
- إذا كانت المعلومات في السياق غير كافية أو غير متعلقة بالسؤال، اذكر ذلك بوضوح
- استخدم لغة عربية فصيحة واضحة وسلسة
- نظم إجابتك بشكل منطقي ومرتب (القاعدة، الشرح، الأمثلة، الملاحظات)

**السياق المسترجع من المراجع:**
{context}

**سؤال المستخدم:** {question}

**إجابتك التفصيلية:**`

// FillTemplate substitutes context and question into template. Placeholders
// are replaced in one pass, so braces inside the values are left alone.
func FillTemplate(template, context, question string) string {
	if template == "" {
		template = DefaultPromptTemplate
	}
	return strings.NewReplacer("{context}", context, "{question}", question).Replace(template)
}
